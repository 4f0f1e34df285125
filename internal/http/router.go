package http

import (
	"net/http"
	"strings"
)

// RouterConfig lists the handlers mounted by NewRouter. A nil handler leaves
// its routes unregistered. Middleware is applied in order, outermost first.
type RouterConfig struct {
	Invites     *InviteHandler
	Events      *EventHandler
	Rsvps       *RsvpHandler
	Users       *UserHandler
	Collections *CollectionHandler
	Middleware  []func(http.Handler) http.Handler
}

// NewRouter builds the HTTP API routes on a ServeMux and wraps it with the
// configured middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Invites != nil {
		mux.HandleFunc("/calendar/invites", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Invites.Create(w, r)
		})
	}

	if cfg.Events != nil {
		mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Events.List(w, r)
			case http.MethodPost:
				cfg.Events.Create(w, r)
			case http.MethodPut:
				cfg.Events.UpdateBatch(w, r)
			case http.MethodDelete:
				cfg.Events.DeleteBatch(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
			}
		})
		mux.HandleFunc("/events/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/events/")
			hash, suffix, _ := strings.Cut(rest, "/")
			if hash == "" || (suffix != "" && suffix != "ics") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			r = r.WithContext(ContextWithEventHash(r.Context(), hash))
			if suffix == "ics" {
				cfg.Events.ICS(w, r)
				return
			}
			cfg.Events.Get(w, r)
		})
	}

	if cfg.Rsvps != nil {
		mux.HandleFunc("/rsvp/", func(w http.ResponseWriter, r *http.Request) {
			hash := strings.TrimPrefix(r.URL.Path, "/rsvp/")
			if hash == "" || strings.Contains(hash, "/") {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithEventHash(r.Context(), hash))
			switch r.Method {
			case http.MethodGet:
				cfg.Rsvps.List(w, r)
			case http.MethodPost:
				cfg.Rsvps.Create(w, r)
			case http.MethodDelete:
				cfg.Rsvps.Cancel(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
			}
		})
	}

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/users/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithUserID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Users.Get(w, r)
			case http.MethodPut:
				cfg.Users.Update(w, r)
			case http.MethodDelete:
				cfg.Users.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Collections != nil {
		mux.HandleFunc("/collections", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Collections.List(w, r)
			case http.MethodPost:
				cfg.Collections.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/collections/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/collections/")
			id, suffix, _ := strings.Cut(rest, "/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithCollectionID(r.Context(), id))
			switch suffix {
			case "":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Collections.Get(w, r)
			case "events":
				switch r.Method {
				case http.MethodPut:
					cfg.Collections.AddEvents(w, r)
				case http.MethodDelete:
					cfg.Collections.RemoveEvents(w, r)
				default:
					methodNotAllowed(w, http.MethodPut, http.MethodDelete)
				}
			default:
				http.NotFound(w, r)
			}
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
