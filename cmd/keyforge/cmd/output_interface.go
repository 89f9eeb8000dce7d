package cmd

import "github.com/runvoy/keyforge/internal/output"

// OutputInterface defines the interface for output operations to enable dependency injection and testing.
type OutputInterface interface {
	Infof(format string, a ...any)
	Errorf(format string, a ...any)
	Successf(format string, a ...any)
	Warningf(format string, a ...any)
	Step(step, total int, message string)
	StepSuccess(step, total int, message string)
	StepWarning(step, total int, message string)
	StepError(step, total int, message string)
	Header(text string)
	Subheader(text string)
	Table(headers []string, rows [][]string)
	List(items []string)
	Blank()
	Bold(text string) string
	Gray(text string) string
	StatusBadge(status string) string
	KeyValue(key, value string)
	KeyValueBold(key, value string)
	Box(text string)
}

// outputWrapper wraps the global output package functions to implement OutputInterface.
type outputWrapper struct{}

// NewOutputWrapper creates a new output wrapper that implements OutputInterface.
func NewOutputWrapper() OutputInterface {
	return &outputWrapper{}
}

func (o *outputWrapper) Infof(format string, a ...any) {
	output.Infof(format, a...)
}

func (o *outputWrapper) Errorf(format string, a ...any) {
	output.Errorf(format, a...)
}

func (o *outputWrapper) Successf(format string, a ...any) {
	output.Successf(format, a...)
}

func (o *outputWrapper) Warningf(format string, a ...any) {
	output.Warningf(format, a...)
}

func (o *outputWrapper) Step(step, total int, message string) {
	output.Step(step, total, message)
}

func (o *outputWrapper) StepSuccess(step, total int, message string) {
	output.StepSuccess(step, total, message)
}

func (o *outputWrapper) StepWarning(step, total int, message string) {
	output.StepWarning(step, total, message)
}

func (o *outputWrapper) StepError(step, total int, message string) {
	output.StepError(step, total, message)
}

func (o *outputWrapper) Header(text string) {
	output.Header(text)
}

func (o *outputWrapper) Subheader(text string) {
	output.Subheader(text)
}

func (o *outputWrapper) Table(headers []string, rows [][]string) {
	output.Table(headers, rows)
}

func (o *outputWrapper) List(items []string) {
	output.List(items)
}

func (o *outputWrapper) Blank() {
	output.Blank()
}

func (o *outputWrapper) Bold(text string) string {
	return output.Bold(text)
}

func (o *outputWrapper) Gray(text string) string {
	return output.Gray(text)
}

func (o *outputWrapper) StatusBadge(status string) string {
	return output.StatusBadge(status)
}

func (o *outputWrapper) KeyValue(key, value string) {
	output.KeyValue(key, value)
}

func (o *outputWrapper) KeyValueBold(key, value string) {
	output.KeyValueBold(key, value)
}

func (o *outputWrapper) Box(text string) {
	output.Box(text)
}
