package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brioai/brio/internal/log"
	"github.com/brioai/brio/internal/tools"
)

// Repository is the persistence surface the registration service needs.
// *Store satisfies it.
type Repository interface {
	Create(ctx context.Context, p *Provider) error
	ByUser(ctx context.Context, userID string) ([]Provider, error)
	ExistsByUserURL(ctx context.Context, userID, url string) (bool, error)
	Toggle(ctx context.Context, id uuid.UUID, userID string) (*Provider, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

// ValidationResult is what a probe observed about a candidate provider.
// Synthesized is set when the server reported no name and the name and
// description had to be generated.
type ValidationResult struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Synthesized  bool               `json:"synthesized"`
	Capabilities Capabilities       `json:"capabilities"`
	Tools        []tools.Descriptor `json:"tools"`
	ToolCount    int                `json:"toolCount"`
}

// Service handles provider registration and lifecycle.
type Service struct {
	repo      Repository
	dialer    Dialer
	describer *Describer
	logger    log.Logger
}

// NewService creates the registration service.
func NewService(repo Repository, dialer Dialer, describer *Describer, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{repo: repo, dialer: dialer, describer: describer, logger: logger}
}

func checkInput(kind TransportKind, url string) error {
	if url == "" {
		return &ValidationError{Field: "url", Reason: "must not be empty"}
	}
	if !kind.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown transport %q", kind)}
	}
	return nil
}

// Validate dials the candidate provider and reports what it supports,
// without persisting anything.
func (s *Service) Validate(ctx context.Context, kind TransportKind, url string) (*ValidationResult, error) {
	if err := checkInput(kind, url); err != nil {
		return nil, err
	}
	conn, err := s.dialer.Dial(ctx, Provider{Name: url, Kind: kind, URL: url})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	snapshot := DescriptorsFromMCP(conn.Tools)
	name, desc, synthesized := s.describer.Describe(ctx, url, conn.Info, snapshot)
	return &ValidationResult{
		Name:         name,
		Description:  desc,
		Synthesized:  synthesized,
		Capabilities: conn.Capabilities(),
		Tools:        snapshot,
		ToolCount:    len(snapshot),
	}, nil
}

// Register probes the provider, snapshots its tools, and persists it as
// active. When no name is given, the server-reported one is used; only
// when the server is anonymous too is a name generated from the probe,
// and then the record is marked as AI-generated. The same URL can only be
// registered once per user; matching is exact string comparison, so
// equivalent spellings of one endpoint are distinct.
func (s *Service) Register(ctx context.Context, userID string, kind TransportKind, url, name string) (*Provider, error) {
	if err := checkInput(kind, url); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByUserURL(ctx, userID, url)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicate
	}

	conn, err := s.dialer.Dial(ctx, Provider{Name: displayName(name, url), Kind: kind, URL: url})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	snapshot := DescriptorsFromMCP(conn.Tools)
	p := &Provider{
		UserID:       userID,
		Kind:         kind,
		URL:          url,
		Active:       true,
		Capabilities: conn.Capabilities(),
		Tools:        snapshot,
	}
	if name != "" {
		p.Name = name
		_, p.Description = fallbackDescription(url, conn.Info, len(snapshot))
	} else {
		p.Name, p.Description, p.AIGenerated = s.describer.Describe(ctx, url, conn.Info, snapshot)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("provider registered",
		"provider", p.Name, "url", p.URL, "tools", len(snapshot), "user", userID)
	return p, nil
}

// List returns the user's providers in registration order.
func (s *Service) List(ctx context.Context, userID string) ([]Provider, error) {
	return s.repo.ByUser(ctx, userID)
}

// Toggle flips a provider's active flag.
func (s *Service) Toggle(ctx context.Context, id uuid.UUID, userID string) (*Provider, error) {
	return s.repo.Toggle(ctx, id, userID)
}

// Delete removes a provider registration.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	return s.repo.Delete(ctx, id, userID)
}

func displayName(name, url string) string {
	if name != "" {
		return name
	}
	return url
}
