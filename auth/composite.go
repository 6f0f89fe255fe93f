package auth

import "context"

// Composite tries authenticators in order and returns the first success.
type Composite struct {
	authenticators []Authenticator
}

// NewComposite creates a composite authenticator. Nil entries are skipped.
func NewComposite(auths ...Authenticator) *Composite {
	c := &Composite{}
	for _, a := range auths {
		if a != nil {
			c.authenticators = append(c.authenticators, a)
		}
	}
	return c
}

// Name returns "composite".
func (c *Composite) Name() string {
	return "composite"
}

// Supports returns true if any authenticator supports the request.
func (c *Composite) Supports(ctx context.Context, req *Request) bool {
	for _, a := range c.authenticators {
		if a.Supports(ctx, req) {
			return true
		}
	}
	return false
}

// Authenticate tries each supporting authenticator in order. Internal errors
// are returned immediately; otherwise the last failure is returned when none
// succeeds.
func (c *Composite) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	var last *Result
	for _, a := range c.authenticators {
		if !a.Supports(ctx, req) {
			continue
		}
		res, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if res.Authenticated {
			return res, nil
		}
		last = res
	}
	if last != nil {
		return last, nil
	}
	return Failure(ErrMissingCredentials, MethodNone), nil
}

var _ Authenticator = (*Composite)(nil)
