package models

import "testing"

func TestTransactionAmountsRequired(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{StatusInquiry, false},
		{StatusQuotePending, false},
		{StatusQuoteSent, false},
		{StatusQuoteRevision, false},
		{StatusPaymentPending, true},
		{StatusPaid, true},
		{StatusInProgress, true},
		{StatusRevisionRequested, true},
		{StatusDelivered, true},
		{StatusCompleted, true},
		{StatusCancelled, false},
		{StatusRefunded, false},
		{"bogus", false},
	}
	for _, c := range cases {
		if got := AmountsRequired(c.status); got != c.want {
			t.Errorf("AmountsRequired(%q) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	terminal := map[string]bool{
		StatusCompleted: true,
		StatusCancelled: true,
		StatusRefunded:  true,
	}
	for _, status := range []string{
		StatusInquiry, StatusQuotePending, StatusQuoteSent, StatusQuoteRevision,
		StatusPaymentPending, StatusPaid, StatusInProgress, StatusRevisionRequested,
		StatusDelivered, StatusCompleted, StatusCancelled, StatusRefunded,
	} {
		if got := Terminal(status); got != terminal[status] {
			t.Errorf("Terminal(%q) = %v, want %v", status, got, terminal[status])
		}
	}
}
