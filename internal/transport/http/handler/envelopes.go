package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/member-auth/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// AuthEnvelope wraps responses that establish a session.
type AuthEnvelope struct {
	Token   string      `json:"token"`
	Member  *MemberView `json:"member,omitempty"`
	Message string      `json:"message,omitempty"`
}

// MemberEnvelope wraps the profile response.
type MemberEnvelope struct {
	Member *MemberView `json:"member"`
}

// MemberView is the public projection of a member. It never includes the
// login challenge.
type MemberView struct {
	MemberID  string    `json:"member_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Contact   string    `json:"contact"`
	DOB       string    `json:"dob"`
	CreatedAt time.Time `json:"created_at"`
}

func toMemberView(m *domain.Member) *MemberView {
	if m == nil {
		return nil
	}
	v := &MemberView{
		MemberID:  m.MemberID,
		FullName:  m.FullName,
		Email:     m.Email,
		Contact:   m.Contact,
		CreatedAt: m.CreatedAt,
	}
	if !m.BirthDate.IsZero() {
		v.DOB = m.BirthDate.Format(domain.DateLayout)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: code})
}
