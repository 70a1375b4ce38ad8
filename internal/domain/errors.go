package domain

import "errors"

var (
	// ErrUnknownMode is returned for quiz modes the engine does not support.
	ErrUnknownMode = errors.New("unknown quiz mode")
	// ErrNoQuestions indicates the course bank yielded nothing to ask.
	ErrNoQuestions = errors.New("no questions available")
	// ErrEmptyProgressSet indicates a progress attempt with no recorded misses.
	ErrEmptyProgressSet = errors.New("no missed questions recorded for course")
	// ErrNoSelection is the transient rejection of an empty submission.
	ErrNoSelection = errors.New("no option selected")
	// ErrSessionEnded is returned when an operation requires a live attempt.
	ErrSessionEnded = errors.New("quiz session already ended")
	// ErrCourseNotFound indicates the course bank could not be loaded.
	ErrCourseNotFound = errors.New("course not found")
)
