package service

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	usernamePattern   = regexp.MustCompile(`^[a-zA-Z0-9_.-]{5,30}$`)
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	separatorPattern  = regexp.MustCompile(`[\s-]+`)
	disallowedPattern = regexp.MustCompile(`[^a-zA-Z0-9._]`)
	startsWithLetter  = regexp.MustCompile(`^[a-zA-Z]`)
)

const (
	minPasswordLength     = 8
	generatedUsernameMax  = 12
	generatedSuffixLength = 4
)

var errNonASCII = errors.New("non ascii")

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, validation.Match(emailPattern)); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// validateUsername revisa la lista reservada antes del formato.
func validateUsername(username string) error {
	if username == "" {
		return ErrMissingFields
	}
	if isReservedUsername(username) {
		return ErrUsernameReserved
	}
	if err := validation.Validate(username, validation.Match(usernamePattern)); err != nil {
		return ErrInvalidUsername
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrMissingFields
	}
	if err := validation.Validate(password, validation.Length(minPasswordLength, 0)); err != nil {
		return ErrPasswordTooShort
	}
	if err := validation.Validate(password, validation.By(printableASCII)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

func printableASCII(value interface{}) error {
	s, _ := value.(string)
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return errNonASCII
		}
	}
	return nil
}

func isReservedUsername(username string) bool {
	_, ok := reservedUsernames[strings.ToLower(username)]
	return ok
}

// sanitizeUsername deriva un nombre de usuario valido a partir del nombre
// visible de Google.
func sanitizeUsername(name string) (string, error) {
	username := strings.TrimSpace(name)
	username = separatorPattern.ReplaceAllString(username, "_")
	username = disallowedPattern.ReplaceAllString(username, "")
	if !startsWithLetter.MatchString(username) {
		username = "user_" + username
	}
	username = strings.Trim(username, "._")
	if len(username) > generatedUsernameMax {
		username = username[:generatedUsernameMax]
	}
	if usernamePattern.MatchString(username) && !isReservedUsername(username) {
		return username, nil
	}
	suffix, err := randomSuffix(generatedSuffixLength)
	if err != nil {
		return "", err
	}
	return "user_" + suffix, nil
}

var reservedUsernames = func() map[string]struct{} {
	list := []string{
		"admin", "root", "support", "system", "null", "undefined",
		"moderator", "mod", "administrator", "webmaster", "contact",
		"help", "about", "info", "owner", "superuser", "staff", "api",
		"account", "user", "users", "me", "you", "settings", "config",
		"dashboard", "login", "logout", "register", "signup", "signin",
		"signout", "profile", "home", "security", "terms", "privacy",
		"tos", "faq", "feedback", "reports", "report", "adminpanel",
		"console", "auth", "v1", "v2", "internal", "public", "private",
		"guest", "anonymous", "developer", "dev", "ops", "beta", "test",
		"testing", "demo", "rootadmin", "superadmin", "sysadmin",
		"master", "operator", "staffer", "moderat0r", "founder", "ceo",
		"cto", "cfo", "coo", "hr", "securityteam", "supportteam",
		"billing", "payments", "invoice", "shop", "store", "cart",
		"checkout", "subscribe", "unsubscribe", "apiadmin", "apikey",
		"service", "systemadmin", "nulluser", "undefineduser",
		"supervisor", "manager", "leader", "team", "project", "partner",
		"affiliate", "marketing", "sales", "contactus", "post", "posts",
		"article", "articles", "news", "blog", "blogs", "events",
		"calendar", "schedule", "status", "error", "errors", "bug",
		"bugs", "patch", "update", "upgrade", "downgrade", "version",
		"release", "devops", "analytics", "stats", "statistics",
		"metrics", "metricsadmin", "adminstats", "supportdesk",
		"helpline", "helpdesk", "moderation", "moderate",
		"usersupport", "client", "clients", "customer", "customers",
		"apiuser", "systemuser", "bot", "bots", "crawler", "spider",
		"seo", "spam", "phishing", "blacklist", "whitelist", "admin123",
		"testuser", "demoaccount", "trial", "betauser", "alpha",
		"alphatest", "sandbox", "sandboxuser", "readonly", "readwrite",
		"writeonly", "masterkey", "access", "permission", "permissions",
		"role", "roles", "group", "groups", "cron", "daemon", "task",
		"jobs", "worker", "queue", "scheduler", "cache", "temp", "tmp",
		"backup", "restore", "http", "https", "ftp", "ssh", "smtp",
		"pop3", "imap", "dns", "tcp", "udp", "ip", "json", "xml", "csv",
		"html", "css", "js", "javascript", "node", "npm", "yarn", "fatal",
		"panic", "crash", "fail", "failure", "exception", "bugreport",
		"trace", "stack", "overflow", "memory", "analyst", "consultant",
		"engineer", "designer", "architect", "tester", "qa", "qaengineer",
		"nullify", "void", "undefinedvariable", "delete", "remove",
		"drop", "truncate", "rootuser", "super", "god", "admin1", "julia",
		"administrator1", "sys", "jspython", "cc++", "java", "c#", "rust",
		"go", "verilog", "sql", "mongodb", "swift", "ruby", "typescript",
		"dart", "kotlin", "perl", "scala",
	}
	set := make(map[string]struct{}, len(list))
	for _, name := range list {
		set[name] = struct{}{}
	}
	return set
}()
