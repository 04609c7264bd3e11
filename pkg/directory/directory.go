// Package directory resolves supported chains and their tradable tokens.
package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"moleswap/pkg/types"

	"github.com/sirupsen/logrus"
)

// ChainSource lists supported chains
type ChainSource interface {
	ListChains(ctx context.Context) ([]types.Chain, error)
}

// Directory holds the session's chain list
type Directory struct {
	source ChainSource
	logger *logrus.Logger

	mu     sync.RWMutex
	chains []types.Chain
}

// New creates a directory backed by source
func New(source ChainSource, logger *logrus.Logger) *Directory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Directory{source: source, logger: logger}
}

// Load fetches the chain list and keeps it for the session
func (d *Directory) Load(ctx context.Context) ([]types.Chain, error) {
	chains, err := d.source.ListChains(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.chains = chains
	d.mu.Unlock()

	d.logger.WithField("chains", len(chains)).Debug("Loaded chain directory")
	return chains, nil
}

// Chains returns the session's chain list
func (d *Directory) Chains() []types.Chain {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]types.Chain(nil), d.chains...)
}

// Chain looks up a loaded chain by id
func (d *Directory) Chain(id int64) (*types.Chain, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for i := range d.chains {
		if d.chains[i].ID == id {
			c := d.chains[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("chain %d not supported", id)
}

// FindChain looks up a loaded chain by id, name or display name
func (d *Directory) FindChain(query string) (*types.Chain, error) {
	query = strings.TrimSpace(query)
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		return d.Chain(id)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := range d.chains {
		if strings.EqualFold(query, d.chains[i].Name) || strings.EqualFold(query, d.chains[i].DisplayName) {
			c := d.chains[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("chain '%s' not supported", query)
}

// TokensForChain lists the native token first, then featured tokens, then
// ERC20 listings, skipping addresses already seen.
func TokensForChain(chain *types.Chain) []types.Token {
	if chain == nil {
		return nil
	}

	seen := make(map[string]bool)
	var tokens []types.Token
	add := func(t types.Token) {
		key := t.Key()
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		tokens = append(tokens, t)
	}

	if c := chain.Currency; c != nil {
		addr := c.Address
		if addr == "" {
			addr = types.NativeAddress
		}
		logo := chain.LogoURL
		if logo == "" {
			logo = chain.IconURL
		}
		add(types.Token{
			ID:       c.ID,
			ChainID:  chain.ID,
			Symbol:   c.Symbol,
			Name:     c.Name,
			Address:  addr,
			Decimals: c.Decimals,
			LogoURI:  logo,
			Native:   true,
		})
	}

	for _, list := range [][]types.Currency{chain.FeaturedTokens, chain.ERC20Currencies} {
		for _, c := range list {
			add(types.Token{
				ID:       c.ID,
				ChainID:  chain.ID,
				Symbol:   c.Symbol,
				Name:     c.Name,
				Address:  c.Address,
				Decimals: c.Decimals,
				LogoURI:  c.Logo(),
			})
		}
	}

	return tokens
}

// FindToken resolves a token on chain by "native", address or symbol
func FindToken(chain *types.Chain, query string) (*types.Token, error) {
	query = strings.TrimSpace(query)
	tokens := TokensForChain(chain)

	for i := range tokens {
		t := tokens[i]
		switch {
		case strings.EqualFold(query, "native") && t.Native,
			strings.EqualFold(query, t.Address),
			strings.EqualFold(query, t.Symbol):
			return &t, nil
		}
	}
	return nil, fmt.Errorf("token '%s' not found on chain %d", query, chain.ID)
}
