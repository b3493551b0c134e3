package httpserver

import "io"

type Provider interface {
	Start() error
	io.Closer
}

// Runner binds the listener synchronously and serves in the background.
type Runner interface {
	Run() error
}

type RunableProvider interface {
	Provider
	Runner
}
