package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"email-router/internal/common/logging"
	"email-router/internal/parser"
	"email-router/internal/routing"
)

// HandleInbound receives one inbound email webhook post and routes it.
//
// The upstream mail service treats any non-200 answer as a delivery failure
// and retries the post, so routed and unrouted messages are both
// acknowledged with 200 "OK". Only a malformed payload (400) or an instance
// without an activated datastore (503) refuses the post.
func (h *Handlers) HandleInbound(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if requested := vars["instance"]; !strings.EqualFold(requested, h.instance.URLPrefix) {
		logging.Debug("inbound post for another instance",
			logging.String("requested", requested),
			logging.String("serving", h.instance.URLPrefix))
		http.NotFound(w, r)
		return
	}

	envelope, err := parser.ParseInbound(r)
	if err != nil {
		logging.Warn("inbound message rejected", logging.Err(err))
		http.Error(w, fmt.Sprintf("Malformed inbound message: %v", err), http.StatusBadRequest)
		return
	}

	collection, err := h.engine.Match(envelope.To, envelope.From, envelope.SenderIP)
	if err != nil {
		h.answerMatchError(w, envelope, err)
		return
	}

	targets := make([]string, len(collection.Results))
	for i, result := range collection.Results {
		targets[i] = result.TargetName
	}
	logging.Info("inbound message routed",
		logging.String("from", envelope.From),
		logging.Strings("to", envelope.To),
		logging.Strings("targets", targets))
	logging.Debug("match trace", logging.Strings("trace", collection.Trace))

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// answerMatchError maps a match failure to its HTTP answer. A message that
// matched no target is an outcome, not a fault: the webhook caller gets the
// same 200 "OK" so it never retries, and the miss is logged here instead.
func (h *Handlers) answerMatchError(w http.ResponseWriter, envelope *parser.Envelope, err error) {
	var notFound *routing.MatchNotFoundError
	switch {
	case errors.As(err, &notFound):
		logging.Info("inbound message matched no target",
			logging.String("from", envelope.From),
			logging.Strings("to", envelope.To))
		logging.Debug("match trace", logging.Strings("trace", notFound.Trace))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))

	case errors.Is(err, routing.ErrNotActive):
		http.Error(w, "Rules datastore is not active", http.StatusServiceUnavailable)

	case errors.Is(err, routing.ErrInputData):
		logging.Warn("inbound message rejected", logging.Err(err))
		http.Error(w, fmt.Sprintf("Invalid message data: %v", err), http.StatusBadRequest)

	default:
		logging.Error("inbound message match failed", err,
			logging.String("from", envelope.From),
			logging.Strings("to", envelope.To))
		http.Error(w, fmt.Sprintf("Match evaluation failed: %v", err), http.StatusInternalServerError)
	}
}
