package swap

import (
	"strings"

	"moleswap/pkg/approval"
	"moleswap/pkg/payload"
	"moleswap/pkg/types"
)

// BurnAddresses are placeholder addresses that may appear in quotes built
// before a wallet was connected. None of them can sign.
var BurnAddresses = []string{
	types.PlaceholderUser,
	"0xdead000000000000000000000000000000000000",
	types.NativeAddress,
}

// IsBurnAddress reports whether addr is one of BurnAddresses
func IsBurnAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	for _, b := range BurnAddresses {
		if strings.EqualFold(addr, b) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of q with every burn address replaced by owner.
// Payload trees are rewritten at any depth and under any key. Typed string
// fields of the quote, its steps and their status checks are rewritten when
// they hold a burn address; check endpoints also have embedded occurrences
// replaced. Step calldata is left as is.
func Sanitize(q *types.Quote, owner string) *types.Quote {
	out := q.Clone()
	if out == nil {
		return nil
	}

	fix := func(s string) string {
		if IsBurnAddress(s) {
			return owner
		}
		return s
	}
	fixTree := func(v payload.Value) payload.Value {
		return v.MapStrings(func(_, s string) string { return fix(s) })
	}

	for _, f := range []*string{&out.User, &out.Recipient, &out.Spender, &out.Route, &out.Operation, &out.ExpectedOutput} {
		*f = fix(*f)
	}
	out.Details = fixTree(out.Details)
	out.Fees.Raw = fixTree(out.Fees.Raw)

	for i := range out.Steps {
		step := &out.Steps[i]
		for _, f := range []*string{&step.ID, &step.Name, &step.Type, &step.Action, &step.Description, &step.RequestID, &step.Spender} {
			*f = fix(*f)
		}
		for j := range step.Items {
			item := &step.Items[j]
			item.Data = fixTree(item.Data)
			if item.Check != nil {
				item.Check.Endpoint = replaceEmbedded(item.Check.Endpoint, owner)
			}
		}
	}
	return out
}

func replaceEmbedded(s, owner string) string {
	lower := strings.ToLower(s)
	for _, b := range BurnAddresses {
		b = strings.ToLower(b)
		for from := 0; ; {
			i := strings.Index(lower[from:], b)
			if i < 0 {
				break
			}
			i += from
			s = s[:i] + owner + s[i+len(b):]
			lower = lower[:i] + strings.ToLower(owner) + lower[i+len(b):]
			from = i + len(owner)
		}
	}
	return s
}

func containsEmbedded(s string) bool {
	lower := strings.ToLower(s)
	for _, b := range BurnAddresses {
		if strings.Contains(lower, strings.ToLower(b)) {
			return true
		}
	}
	return false
}

// ContainsBurnAddress reports whether any string in q is a burn address
func ContainsBurnAddress(q *types.Quote) bool {
	if q == nil {
		return false
	}
	for _, s := range []string{q.User, q.Recipient, q.Spender, q.Route, q.Operation, q.ExpectedOutput} {
		if IsBurnAddress(s) {
			return true
		}
	}
	if q.Details.Any(IsBurnAddress) || q.Fees.Raw.Any(IsBurnAddress) {
		return true
	}
	for _, step := range q.Steps {
		for _, s := range []string{step.ID, step.Name, step.Type, step.Action, step.Description, step.RequestID, step.Spender} {
			if IsBurnAddress(s) {
				return true
			}
		}
		for _, item := range step.Items {
			if item.Data.Any(IsBurnAddress) {
				return true
			}
			if item.Check != nil && containsEmbedded(item.Check.Endpoint) {
				return true
			}
		}
	}
	return false
}

// StripApprovals returns q without its approval steps and how many were removed
func StripApprovals(q *types.Quote) (*types.Quote, int) {
	out := *q
	out.Steps = make([]types.Step, 0, len(q.Steps))
	for _, s := range q.Steps {
		if approval.IsApprovalStep(s) {
			continue
		}
		out.Steps = append(out.Steps, s)
	}
	return &out, len(q.Steps) - len(out.Steps)
}
