package web

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/JonMunkholm/dataprep/internal/logging"
)

const datasetKey = "dataset_id"

// Flash kinds, in display order.
const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashWarning = "warning"
	flashDanger  = "danger"
)

var flashKinds = []string{flashSuccess, flashInfo, flashWarning, flashDanger}

type flash struct {
	Kind    string
	Message string
}

// browserSession returns the cookie session. A cookie that fails to decode
// (rotated secret, tampering) yields a fresh session.
func (s *Server) browserSession(r *http.Request) *sessions.Session {
	sess, err := s.sessions.Get(r, s.cfg.Session.CookieName)
	if err != nil {
		logging.FromContext(r.Context()).Debug("discarding unreadable session cookie", "error", err)
	}
	return sess
}

func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	if err := sess.Save(r, w); err != nil {
		logging.FromContext(r.Context()).Error("session save failed", "error", err)
	}
}

// datasetID returns the dataset session bound to the browser, if any.
func (s *Server) datasetID(r *http.Request) string {
	id, _ := s.browserSession(r).Values[datasetKey].(string)
	return id
}

func (s *Server) setDatasetID(w http.ResponseWriter, r *http.Request, id string) {
	sess := s.browserSession(r)
	if id == "" {
		delete(sess.Values, datasetKey)
	} else {
		sess.Values[datasetKey] = id
	}
	s.saveSession(w, r, sess)
}

// addFlash queues a message for the next rendered page.
func (s *Server) addFlash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	sess := s.browserSession(r)
	sess.AddFlash(msg, kind)
	s.saveSession(w, r, sess)
}

// popFlashes drains queued messages. It must run before the response body
// is written since it updates the cookie.
func (s *Server) popFlashes(w http.ResponseWriter, r *http.Request) []flash {
	sess := s.browserSession(r)
	var out []flash
	for _, kind := range flashKinds {
		for _, v := range sess.Flashes(kind) {
			if msg, ok := v.(string); ok {
				out = append(out, flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		s.saveSession(w, r, sess)
	}
	return out
}
