package strategy

import (
	"fmt"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/auth/provider"
)

// Engine holds the strategies configured at start-up.
type Engine struct {
	local *Local
	oauth map[string]*OAuth
	names []string
}

// NewEngine builds one OAuth strategy per registered provider.
func NewEngine(local *Local, providers *provider.Registry, users ExternalUsers) *Engine {
	e := &Engine{
		local: local,
		oauth: make(map[string]*OAuth),
	}

	if providers != nil {
		for _, name := range providers.Names() {
			p, _ := providers.Get(name)
			e.oauth[name] = NewOAuth(p, users)
			e.names = append(e.names, name)
		}
	}

	return e
}

func (e *Engine) Local() *Local {
	return e.local
}

func (e *Engine) OAuth(name string) (*OAuth, error) {
	s, ok := e.oauth[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", name, auth.ErrUnknownStrategy)
	}
	return s, nil
}

func (e *Engine) Get(name string) (Strategy, error) {
	if name == LocalName && e.local != nil {
		return e.local, nil
	}
	return e.OAuth(name)
}

// Providers returns the names of the enabled OAuth strategies.
func (e *Engine) Providers() []string {
	return append([]string{}, e.names...)
}
