package cli

import "github.com/milwrite/botwatch/internal/supervisor"

// validateFlags centralizes run flag checks to keep behavior consistent.
func validateFlags(globals *Globals, c *RunCmd) error {
	if c.GUIPort < 1 || c.GUIPort > 65535 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--gui-port must be between 1 and 65535", "pass a free TCP port such as 3001")
	}
	if _, err := supervisor.SplitCommand(c.BotCmd); err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--bot-cmd: "+err.Error(), "quote the command, e.g. --bot-cmd 'node bot.js'")
	}
	if !c.NoDashboard {
		if _, err := supervisor.SplitCommand(c.DashboardCmd); err != nil {
			return outputErrorCommon(globals, "INVALID_FLAGS", "--dashboard-cmd: "+err.Error(), "set a dashboard command or pass --no-dashboard")
		}
	}
	if c.StartupTimeout <= 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--startup-timeout must be positive")
	}
	if c.GracePeriod <= 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--grace-period must be positive")
	}
	if c.HealthInterval <= 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--health-interval must be positive")
	}
	if c.HangThreshold < c.HealthInterval {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--hang-threshold must not be shorter than --health-interval", "hang detection runs on each health check")
	}
	if c.FlushThreshold < 1 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--flush-threshold must be at least 1")
	}
	return nil
}
