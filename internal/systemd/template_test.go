package systemd

import (
	"strings"
	"testing"
)

func TestUserUnit(t *testing.T) {
	unit := UserUnit("/usr/local/bin/contentlock", "/home/u/.contentlock/config.yaml")

	for _, section := range []string{"[Unit]", "[Service]", "[Install]"} {
		if !strings.Contains(unit, section) {
			t.Errorf("unit missing section %s", section)
		}
	}
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/contentlock serve --config /home/u/.contentlock/config.yaml") {
		t.Errorf("unit missing serve command:\n%s", unit)
	}
	if !strings.Contains(unit, "Restart=always") {
		t.Error("daemon must restart on every exit")
	}
	if !strings.Contains(unit, "WantedBy=default.target") {
		t.Error("user unit must be wanted by default.target")
	}
}
