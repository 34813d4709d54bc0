package systemd

import "fmt"

// UnitName is the systemd user unit that runs the daemon.
const UnitName = "contentlock.service"

// UserUnit returns the systemd user unit for the contentlock daemon.
// The daemon restarts on any exit so that stopping it is not a way out of
// a running self-lock.
func UserUnit(execPath, configPath string) string {
	return fmt.Sprintf(`[Unit]
Description=contentlock policy daemon
After=network-online.target

[Service]
Type=simple
ExecStart=%s serve --config %s
Restart=always
RestartSec=2
NoNewPrivileges=true
PrivateTmp=true

[Install]
WantedBy=default.target
`, execPath, configPath)
}
