// Package model defines shared request and response types.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Request describes one backend API call. At most one of Body, JSON and Form
// may be set.
type Request struct {
	Method string
	// Path is relative to the resolved origin, or an absolute URL.
	Path string
	// Header values; keys are case-insensitive and the last Set wins.
	Header http.Header

	Body []byte
	JSON any
	Form *Form

	// Origin overrides the resolved origin for this call only.
	Origin string
}

// Form is a multipart/form-data body.
type Form struct {
	Fields map[string]string
	Files  []FormFile
}

// FormFile is one file part of a Form.
type FormFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

// ProxyRequest represents a site-host request to be forwarded to the backend.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   io.ReadCloser
}

// ProxyResponse represents the backend response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
