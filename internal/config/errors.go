package config

import "errors"

var (
	// ErrNoStartURL is returned when no start URL is provided
	ErrNoStartURL = errors.New("start_url is required")
	// ErrInvalidStartURL is returned when the start URL is not an absolute http(s) URL
	ErrInvalidStartURL = errors.New("start_url must be an absolute http or https URL")
	// ErrInvalidMaxPages is returned when the page budget is not greater than 0
	ErrInvalidMaxPages = errors.New("max_pages must be greater than 0")
	// ErrEmptyOutputDir is returned when the output directory is empty
	ErrEmptyOutputDir = errors.New("output_dir cannot be empty")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidScope is returned for an unknown crawl scope
	ErrInvalidScope = errors.New("scope must be one of: any, host, domain")
)
