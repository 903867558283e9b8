// Package observer serves a read-only operator view of the server state.
// Every endpoint is restricted to loopback clients.
package observer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"gridrealm.dev/internal/authority/sqlstore"
)

// AccountLister is the part of the store the status view reads.
type AccountLister interface {
	Accounts(ctx context.Context) ([]sqlstore.Account, error)
}

type Status struct {
	ServerName string             `json:"server_name"`
	Time       time.Time          `json:"time"`
	Online     int                `json:"online"`
	Accounts   []sqlstore.Account `json:"accounts"`
}

type Server struct {
	name     string
	accounts AccountLister
}

func NewServer(name string, accounts AccountLister) *Server {
	return &Server{name: name, accounts: accounts}
}

func (s *Server) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		accts, err := s.accounts.Accounts(r.Context())
		if err != nil {
			http.Error(rw, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		st := Status{ServerName: s.name, Time: time.Now().UTC(), Accounts: accts}
		for _, a := range accts {
			if a.LoggedIn {
				st.Online++
			}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(st)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
