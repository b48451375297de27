package handler

import (
	"context"
	"net/http"

	"github.com/member-auth/internal/domain"
	"github.com/member-auth/internal/transport/http/middleware"
)

type memberReader interface {
	Get(ctx context.Context, memberID string) (*domain.Member, error)
}

// MemberHandler serves the authenticated caller's own record.
type MemberHandler struct {
	members memberReader
}

func NewMemberHandler(members memberReader) *MemberHandler {
	return &MemberHandler{members: members}
}

func (h *MemberHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}
	m, err := h.members.Get(r.Context(), id.MemberID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberEnvelope{Member: toMemberView(m)})
}
