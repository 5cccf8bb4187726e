package donation

import (
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/askidaforma/askida-forma/internal/checkout"
)

// sensitivePatterns defines patterns for sensitive information that should be filtered.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password)["\s:=]+["\s]*([^"\s,}]+)`),
	regexp.MustCompile(`(?i)(secret_key|secretkey|secret)["\s:=]+["\s]*([^"\s,}]+)`),
	regexp.MustCompile(`(?i)(api_key|apikey)["\s:=]+["\s]*([^"\s,}]+)`),
	regexp.MustCompile(`(?i)(access_key|accesskey)["\s:=]+["\s]*([^"\s,}]+)`),
	regexp.MustCompile(`(?i)(bearer\s+)([^\s"]+)`),
	regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/\s]+:)([^@\s]+)`),
}

var emailPattern = regexp.MustCompile(`([A-Za-z0-9._%+\-])[A-Za-z0-9._%+\-]*@([A-Za-z0-9.\-]+\.[A-Za-z]{2,})`)

// sensitiveKeys defines keys that should be redacted in log fields.
var sensitiveKeys = map[string]bool{
	"password":   true,
	"secret":     true,
	"secret_key": true,
	"access_key": true,
	"api_key":    true,
	"token":      true,
}

// DonationLogger provides structured logging for donation operations.
type DonationLogger struct {
	logger *log.Entry
}

// NewDonationLogger creates a new donation logger.
func NewDonationLogger() *DonationLogger {
	return &DonationLogger{
		logger: log.WithField("component", "donation"),
	}
}

func (l *DonationLogger) event(name string, fields log.Fields) *log.Entry {
	f := log.Fields{
		"event":     name,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		f[k] = v
	}
	return l.logger.WithFields(f)
}

func intentFields(sessionID string, intent checkout.Intent) log.Fields {
	return log.Fields{
		"session":  shortID(sessionID),
		"kind":     intent.Kind,
		"target":   intent.TargetID,
		"quantity": intent.Quantity,
		"amount":   intent.TotalAmount.String(),
	}
}

// LogDonationStarted logs a visitor entering the payment step.
func (l *DonationLogger) LogDonationStarted(sessionID string, intent checkout.Intent, attempt uint64) {
	f := intentFields(sessionID, intent)
	f["attempt"] = attempt
	l.event("donation_started", f).Info("donation started")
}

// LogPaymentAsserted logs the unverified "I sent the transfer" claim.
func (l *DonationLogger) LogPaymentAsserted(sessionID string, intent checkout.Intent) {
	l.event("payment_asserted", intentFields(sessionID, intent)).Info("visitor reports bank transfer sent (unverified)")
}

// LogAbandoned logs a back navigation.
func (l *DonationLogger) LogAbandoned(sessionID string, from, to checkout.State) {
	l.event("donation_abandoned", log.Fields{
		"session": shortID(sessionID),
		"from":    from.String(),
		"to":      to.String(),
	}).Info("donation step abandoned")
}

// LogDonationCompleted logs a persisted donation.
func (l *DonationLogger) LogDonationCompleted(sessionID string, intent checkout.Intent, identity checkout.Identity) {
	f := intentFields(sessionID, intent)
	f["identity_type"] = identity.Kind
	f["display_name"] = identity.DisplayName
	f["email"] = MaskEmail(identity.Email)
	l.event("donation_completed", f).Info("donation recorded")
}

// LogDonationFailed logs a store write failure on identity submit.
func (l *DonationLogger) LogDonationFailed(sessionID string, intent checkout.Intent, err error) {
	f := intentFields(sessionID, intent)
	f["error"] = filterSensitive(err.Error())
	l.event("donation_failed", f).Error("donation write failed")
}

// LogStaleWrite logs a write that finished after the visitor left the identity step.
func (l *DonationLogger) LogStaleWrite(sessionID string, attempt uint64, err error) {
	f := log.Fields{
		"session": shortID(sessionID),
		"attempt": attempt,
	}
	if err != nil {
		f["error"] = filterSensitive(err.Error())
	}
	l.event("stale_write_dropped", f).Warn("identity write finished after the flow moved on")
}

// LogFinished logs the return from the thank-you card to the catalog.
func (l *DonationLogger) LogFinished(sessionID string) {
	l.event("donation_finished", log.Fields{"session": shortID(sessionID)}).Debug("donation flow finished")
}

// LogAdminLogin logs a successful admin login.
func (l *DonationLogger) LogAdminLogin(clientIP, provider string) {
	l.event("admin_login", log.Fields{
		"client_ip": clientIP,
		"provider":  provider,
	}).Info("admin logged in")
}

// LogAdminLoginFailed logs a rejected admin password.
func (l *DonationLogger) LogAdminLoginFailed(clientIP string) {
	l.event("admin_login_failed", log.Fields{"client_ip": clientIP}).Warn("admin login rejected")
}

// LogAdminDenied logs an admin route hit with a wrong credential.
func (l *DonationLogger) LogAdminDenied(clientIP, route string) {
	l.event("admin_denied", log.Fields{
		"client_ip": clientIP,
		"route":     route,
	}).Warn("admin access denied")
}

// LogAdminAction logs a catalog or donor change made from the admin console.
func (l *DonationLogger) LogAdminAction(action string, fields map[string]interface{}) {
	l.event("admin_action", FilterSensitiveFields(fields)).WithField("action", action).Info("admin action")
}

// LogError logs an error with context.
func (l *DonationLogger) LogError(operation string, err error, context map[string]interface{}) {
	fields := FilterSensitiveFields(context)
	fields["operation"] = operation
	fields["error"] = filterSensitive(err.Error())
	l.event("error", fields).Error("operation failed")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	if !emailPattern.MatchString(email) {
		return "***"
	}
	return emailPattern.ReplaceAllString(email, "$1***@$2")
}

// filterSensitive removes sensitive information from a string.
func filterSensitive(s string) string {
	result := s
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			// Keep the key name but redact the value
			parts := pattern.FindStringSubmatch(match)
			if len(parts) >= 2 {
				return strings.Replace(match, parts[len(parts)-1], "[REDACTED]", 1)
			}
			return "[REDACTED]"
		})
	}
	return emailPattern.ReplaceAllString(result, "$1***@$2")
}

// FilterSensitiveFields filters sensitive fields from a map.
func FilterSensitiveFields(fields map[string]interface{}) log.Fields {
	result := make(log.Fields, len(fields))
	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			result[k] = "[REDACTED]"
		} else if str, ok := v.(string); ok {
			result[k] = filterSensitive(str)
		} else {
			result[k] = v
		}
	}
	return result
}
