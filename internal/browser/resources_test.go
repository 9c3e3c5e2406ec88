package browser

import "testing"

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "script": true}

	cases := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"Media", false},
		{"Stylesheet", false},
		{"Script", false}, // chart constructors depend on scripts
		{"Document", false},
	}
	for _, c := range cases {
		if got := shouldBlock(set, c.resType); got != c.want {
			t.Errorf("shouldBlock(%q) = %v, want %v", c.resType, got, c.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.HealthInterval <= 0 || c.LoadTimeout <= 0 || c.Logger == nil {
		t.Fatalf("defaults not applied: %+v", c)
	}
}

func TestStatus_BeforeStart(t *testing.T) {
	m := NewManager(Config{RemoteURL: "ws://127.0.0.1:9222/devtools/browser/x"})
	st := m.Status()
	if st.Running || !st.Remote || st.Restarts != 0 || st.Uptime != 0 {
		t.Fatalf("status = %+v", st)
	}
	if err := m.Ping(t.Context()); err == nil {
		t.Fatal("ping succeeded without a browser")
	}
}
