package investments

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type pathParamKey string

var notFoundMessages = map[string]string{
	"id": "Transaction not found",
}

// ValidateInvestmentPathParamsMiddleware parses the named path parameters as
// UUIDs and stores them in the request context. A malformed id cannot exist,
// so it is answered with 404.
func (h *InvestmentHandler) ValidateInvestmentPathParamsMiddleware(next http.Handler, params ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, param := range params {
			paramValue := r.PathValue(param)
			if paramValue == "" {
				h.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s is required", param))
				return
			}

			parsedUUID, err := uuid.Parse(paramValue)
			if err != nil {
				h.log.Debug().Str("param", param).Str("value", paramValue).Msg("invalid path id")
				if message, ok := notFoundMessages[param]; ok {
					h.respondError(w, http.StatusNotFound, message)
					return
				}
				h.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", param))
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), pathParamKey(param), parsedUUID))
		}
		next.ServeHTTP(w, r)
	})
}

// pathUUID returns a parameter validated by the middleware.
func pathUUID(r *http.Request, param string) uuid.UUID {
	id, _ := r.Context().Value(pathParamKey(param)).(uuid.UUID)
	return id
}
