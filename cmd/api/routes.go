package main

import (
	"net/http"

	"github.com/atelierhub/backend/internal/auth"
	"github.com/atelierhub/backend/internal/catalog"
	"github.com/atelierhub/backend/internal/commission"
	"github.com/atelierhub/backend/internal/messaging"
	"github.com/atelierhub/backend/internal/middleware"
)

// RegisterV1Routes adds the /v1/ API endpoints to the given mux.
// Middleware chain: Identity -> (RequireCaller where needed) -> handler.
func RegisterV1Routes(
	mux *http.ServeMux,
	identity func(http.Handler) http.Handler,
	authHandler *auth.Handler,
	catalogHandler *catalog.Handler,
	commissionHandler *commission.Handler,
	messagingHandler *messaging.Handler,
) {
	open := func(h http.HandlerFunc) http.Handler { return identity(h) }
	authed := func(h http.HandlerFunc) http.Handler { return identity(middleware.RequireCaller(h)) }

	mux.HandleFunc("POST /v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /v1/auth/login", authHandler.Login)

	mux.Handle("GET /v1/services", open(catalogHandler.ListServices))
	mux.Handle("GET /v1/services/{id}", open(catalogHandler.GetService))
	mux.Handle("POST /v1/services", authed(catalogHandler.CreateListing))
	mux.Handle("GET /v1/services/mine", authed(catalogHandler.ListMine))
	mux.Handle("PATCH /v1/services/{id}/active", authed(catalogHandler.SetActive))

	// Inquiry creation is open: guests have no credential yet and receive
	// their access token in the response.
	mux.Handle("POST /v1/transactions", open(commissionHandler.CreateInquiry))

	mux.Handle("GET /v1/transactions/{code}", authed(commissionHandler.GetTransaction))
	mux.Handle("POST /v1/transactions/{code}/acknowledge", authed(commissionHandler.Acknowledge))
	mux.Handle("POST /v1/transactions/{code}/quote", authed(commissionHandler.SendQuote))
	mux.Handle("GET /v1/transactions/{code}/quotes", authed(commissionHandler.ListQuotes))
	mux.Handle("POST /v1/transactions/{code}/quote-revision", authed(commissionHandler.RequestQuoteRevision))
	mux.Handle("POST /v1/transactions/{code}/accept", authed(commissionHandler.AcceptQuote))
	mux.Handle("POST /v1/transactions/{code}/pay", authed(commissionHandler.Pay))
	mux.Handle("POST /v1/transactions/{code}/start", authed(commissionHandler.StartProgress))
	mux.Handle("POST /v1/transactions/{code}/deliver", authed(commissionHandler.Deliver))
	mux.Handle("POST /v1/transactions/{code}/revision", authed(commissionHandler.RequestRevision))
	mux.Handle("POST /v1/transactions/{code}/approve", authed(commissionHandler.Approve))
	mux.Handle("POST /v1/transactions/{code}/cancel", authed(commissionHandler.Cancel))
	mux.Handle("POST /v1/transactions/{code}/refund", authed(commissionHandler.Refund))

	mux.Handle("GET /v1/transactions/{code}/messages", authed(messagingHandler.ListThread))
	mux.Handle("POST /v1/transactions/{code}/messages", authed(messagingHandler.PostMessage))
	mux.Handle("POST /v1/transactions/{code}/messages/read", authed(messagingHandler.MarkRead))
	mux.Handle("POST /v1/transactions/{code}/messages/{id}/attachments", authed(messagingHandler.AddAttachment))
	mux.Handle("GET /v1/transactions/{code}/attachments/{id}", authed(messagingHandler.DownloadAttachment))
}
