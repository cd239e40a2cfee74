package config

// MailConfig describes the SMTP relay used for transactional email.  An
// empty Host selects the log-only sender, which is what local development
// uses.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool
}

func LoadMailConfig() MailConfig {
	return MailConfig{
		Host:     envStr("SMTP_HOST", ""),
		Port:     envInt("SMTP_PORT", 587),
		Username: envStr("SMTP_USERNAME", ""),
		Password: envStr("SMTP_PASSWORD", ""),
		From:     envStr("SMTP_FROM", "Aura <no-reply@aura.local>"),
		StartTLS: envBool("SMTP_STARTTLS", true),
	}
}
