package cmd

import (
	"fmt"
	"strings"
)

type mockOutputInterface struct {
	calls []call
}

type call struct {
	method string
	args   []any
}

func (m *mockOutputInterface) Infof(format string, a ...any) {
	m.calls = append(m.calls, call{method: "Infof", args: []any{fmt.Sprintf(format, a...)}})
}
func (m *mockOutputInterface) Errorf(format string, a ...any) {
	m.calls = append(m.calls, call{method: "Errorf", args: []any{fmt.Sprintf(format, a...)}})
}
func (m *mockOutputInterface) Successf(format string, a ...any) {
	m.calls = append(m.calls, call{method: "Successf", args: []any{fmt.Sprintf(format, a...)}})
}
func (m *mockOutputInterface) Warningf(format string, a ...any) {
	m.calls = append(m.calls, call{method: "Warningf", args: []any{fmt.Sprintf(format, a...)}})
}
func (m *mockOutputInterface) Step(step, total int, message string) {
	m.step("Step", step, total, message)
}
func (m *mockOutputInterface) StepSuccess(step, total int, message string) {
	m.step("StepSuccess", step, total, message)
}
func (m *mockOutputInterface) StepWarning(step, total int, message string) {
	m.step("StepWarning", step, total, message)
}
func (m *mockOutputInterface) StepError(step, total int, message string) {
	m.step("StepError", step, total, message)
}
func (m *mockOutputInterface) step(method string, step, total int, message string) {
	m.calls = append(m.calls, call{method: method, args: []any{fmt.Sprintf("[%d/%d] %s", step, total, message)}})
}
func (m *mockOutputInterface) Header(text string) {
	m.calls = append(m.calls, call{method: "Header", args: []any{text}})
}
func (m *mockOutputInterface) Subheader(text string) {
	m.calls = append(m.calls, call{method: "Subheader", args: []any{text}})
}
func (m *mockOutputInterface) Table(headers []string, rows [][]string) {
	m.calls = append(m.calls, call{method: "Table", args: []any{headers, rows}})
}
func (m *mockOutputInterface) List(items []string) {
	m.calls = append(m.calls, call{method: "List", args: []any{items}})
}
func (m *mockOutputInterface) Blank() {
	m.calls = append(m.calls, call{method: "Blank", args: []any{}})
}
func (m *mockOutputInterface) Bold(text string) string {
	return text
}
func (m *mockOutputInterface) Gray(text string) string {
	return text
}
func (m *mockOutputInterface) StatusBadge(status string) string {
	return status
}
func (m *mockOutputInterface) KeyValue(key, value string) {
	m.calls = append(m.calls, call{method: "KeyValue", args: []any{key, value}})
}
func (m *mockOutputInterface) KeyValueBold(key, value string) {
	m.calls = append(m.calls, call{method: "KeyValue", args: []any{key, value}})
}
func (m *mockOutputInterface) Box(text string) {
	m.calls = append(m.calls, call{method: "Box", args: []any{text}})
}

// messages returns the rendered text of every call to method.
func (m *mockOutputInterface) messages(method string) []string {
	var out []string
	for _, c := range m.calls {
		if c.method == method && len(c.args) > 0 {
			if s, ok := c.args[0].(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// steps returns every step line in order, prefixed with its method.
func (m *mockOutputInterface) steps() []string {
	var out []string
	for _, c := range m.calls {
		if strings.HasPrefix(c.method, "Step") {
			out = append(out, c.method+" "+c.args[0].(string))
		}
	}
	return out
}

// keyValue returns the value printed for key.
func (m *mockOutputInterface) keyValue(key string) (string, bool) {
	for _, c := range m.calls {
		if c.method == "KeyValue" && c.args[0] == key {
			return c.args[1].(string), true
		}
	}
	return "", false
}

// find returns the first call to method.
func (m *mockOutputInterface) find(method string) (call, bool) {
	for _, c := range m.calls {
		if c.method == method {
			return c, true
		}
	}
	return call{}, false
}
