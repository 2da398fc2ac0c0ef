package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindUser represents an authenticated end-user.
	ActorKindUser ActorKind = "user"
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents unauthenticated actors.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind   ActorKind
	UserID *string
}

// UserActor returns a user actor, or an anonymous one when id is blank.
func UserActor(id string) Actor {
	if p := pointerOf(id); p != nil {
		return Actor{Kind: ActorKindUser, UserID: p}
	}
	return Actor{Kind: ActorKindAnonymous}
}

// Entry is a single audit record before persistence.
type Entry struct {
	Actor        Actor
	StoreID      *string
	Action       string
	ResourceType string
	ResourceID   *string
	Method       string
	Path         string
	Route        *string
	Status       int
	IP           *string
	UserAgent    *string
	RequestID    *string
	Metadata     []byte
}

// Log is a persisted audit record.
type Log struct {
	ID           int64           `json:"id"`
	ActorKind    string          `json:"actor_kind"`
	ActorUserID  *string         `json:"actor_user_id,omitempty"`
	StoreID      *string         `json:"store_id,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   *string         `json:"resource_id,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        *string         `json:"route,omitempty"`
	Status       int             `json:"status"`
	IP           *string         `json:"ip,omitempty"`
	UserAgent    *string         `json:"user_agent,omitempty"`
	RequestID    *string         `json:"request_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListFilter narrows audit queries.
type ListFilter struct {
	StoreID *string
	Limit   int
	Offset  int
}

// Store defines the persistence operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, e Entry) error
	ListAuditLogs(ctx context.Context, f ListFilter) ([]Log, error)
}

// Service persists audit logs for payment and administrative flows.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
}

// Record persists an audit log entry derived from an HTTP request.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	requestID := req.Header.Get(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = middleware.GetReqID(req.Context())
	}
	return s.RecordEntry(ctx, Entry{
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   pointerOf(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        pointerOf(route),
		Status:       status,
		IP:           pointerOf(common.ClientIP(req)),
		UserAgent:    pointerOf(req.Header.Get("User-Agent")),
		RequestID:    pointerOf(requestID),
		Metadata:     toJSONB(metadata, req.URL.RawQuery),
	})
}

// RecordEntry normalises and persists e. The store on ctx is used when e has none.
func (s Service) RecordEntry(ctx context.Context, e Entry) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 {
		if rand.Float64() > s.SamplingRate {
			return nil
		}
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := ""
	if e.Route != nil {
		route = *e.Route
	} else if r := obs.RoutePatternFromContext(ctx); r != "" {
		route = r
		e.Route = &route
	}
	e.Action = buildAction(e.Action, e.Method, route)
	e.ResourceType = buildResource(e.ResourceType, route)
	e.Actor.Kind = normalizeActorKind(e.Actor.Kind)
	e.Actor.UserID = sanitizeString(e.Actor.UserID)
	if e.Actor.Kind != ActorKindUser {
		e.Actor.UserID = nil
	}
	e.ResourceID = sanitizeString(e.ResourceID)
	if e.StoreID == nil {
		e.StoreID = tenant.Scope(ctx)
	}
	if e.RequestID == nil {
		e.RequestID = pointerOf(middleware.GetReqID(ctx))
	}
	if e.Status == 0 {
		e.Status = http.StatusOK
	}
	return s.Store.InsertAuditLog(ctx, e)
}

// List returns persisted audit records, newest first.
func (s Service) List(ctx context.Context, f ListFilter) ([]Log, error) {
	if s.Store == nil {
		return nil, errors.New("audit: store not configured")
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.Store.ListAuditLogs(ctx, f)
}

func buildAction(action, method, route string) string {
	trimmed := strings.TrimSpace(action)
	if trimmed != "" {
		return trimmed
	}
	base := strings.ToUpper(strings.TrimSpace(method))
	target := route
	if target == "" {
		target = "/"
	}
	return strings.TrimSpace(base + " " + target)
}

func buildResource(resourceType, route string) string {
	trimmed := strings.TrimSpace(resourceType)
	if trimmed != "" {
		return trimmed
	}
	route = strings.TrimSpace(route)
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.ReplaceAll(strings.Trim(route, "/"), "/", ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindUser, ActorKindSystem:
		return kind
	default:
		return ActorKindAnonymous
	}
}

func sanitizeString(value *string) *string {
	if value == nil {
		return nil
	}
	return pointerOf(*value)
}

func pointerOf(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toJSONB(metadata []byte, query string) []byte {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
