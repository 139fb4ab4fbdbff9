package wireguard

import "context"

// mockController is a hand-rolled recording InterfaceController for manager
// unit tests.
type mockController struct {
	writeChanged bool
	writeErr     error
	exists       bool
	upCalls      []string
	downCalls    []string
	configs      map[string]string
}

func newMockController() *mockController {
	return &mockController{exists: true, configs: make(map[string]string)}
}

func (m *mockController) InterfaceExists(_ context.Context, _ string) (bool, error) {
	return m.exists, nil
}

func (m *mockController) ListInterfaces(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.configs))
	for path := range m.configs {
		names = append(names, path)
	}
	return names, nil
}

func (m *mockController) WriteConfig(_ context.Context, configPath, text string) (bool, error) {
	m.configs[configPath] = text
	return m.writeChanged, m.writeErr
}

func (m *mockController) Up(_ context.Context, configPath string) error {
	m.upCalls = append(m.upCalls, configPath)
	return nil
}

func (m *mockController) Down(_ context.Context, _ string, configPath string) error {
	m.downCalls = append(m.downCalls, configPath)
	return nil
}

func (m *mockController) RemoveConfig(configPath string) error {
	delete(m.configs, configPath)
	return nil
}

func (m *mockController) EnsureFirewallRules(_ context.Context, _ string, _ string, _ int) error {
	return nil
}
