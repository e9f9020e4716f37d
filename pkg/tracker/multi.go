package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Multi fans every call out to several backends. Start succeeds when at
// least one backend starts; sessions that failed to start are dropped.
func Multi(backends ...Backend) Backend {
	if len(backends) == 1 {
		return backends[0]
	}
	return multiBackend(backends)
}

type multiBackend []Backend

func (m multiBackend) Start(ctx context.Context, opts StartOptions) (Session, error) {
	if len(m) == 0 {
		return nil, errors.New("no tracking backends configured")
	}
	// Every backend must agree on the run name.
	if opts.Name == "" {
		opts.Name = RunName("", NewRunID())
	}

	var (
		sessions []Session
		errs     []error
	)
	for i, b := range m {
		s, err := b.Start(ctx, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("backend %d: %w", i, err))
			continue
		}
		sessions = append(sessions, s)
	}
	if len(sessions) == 0 {
		return nil, errors.Join(errs...)
	}
	return multiSession(sessions), nil
}

type multiSession []Session

func (m multiSession) Name() string {
	return m[0].Name()
}

func (m multiSession) URL() string {
	var urls []string
	for _, s := range m {
		if u := s.URL(); u != "" {
			urls = append(urls, u)
		}
	}
	return strings.Join(urls, " ")
}

func (m multiSession) Log(ctx context.Context, batch Batch) error {
	var errs []error
	for _, s := range m {
		if err := s.Log(ctx, batch); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m multiSession) Finish(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Finish(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
