package validator

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

func ValidateRegister(email string, name *string, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)

	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			errs.Add("name", "Name must not be blank")
		} else if utf8.RuneCountInString(n) > 100 {
			errs.Add("name", "Name is too long")
		}
	}

	validatePassword(password, errs)

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

func ValidateProject(name string) ValidationErrors {
	errs := make(ValidationErrors)
	validateName("name", "Project name", name, errs)
	return errs
}

func ValidateTask(title string) ValidationErrors {
	errs := make(ValidationErrors)
	validateName("title", "Task title", title, errs)
	return errs
}

func ValidateChannel(name, chType string) ValidationErrors {
	errs := make(ValidationErrors)

	if chType != "PRIVATE_DM" || strings.TrimSpace(name) != "" {
		validateName("name", "Channel name", name, errs)
	}

	switch chType {
	case "PROJECT_GENERAL", "TASK_SPECIFIC", "ANNOUNCEMENTS", "PRIVATE_DM":
	case "":
		errs.Add("type", "Channel type is required")
	default:
		errs.Add("type", "Channel type must be PROJECT_GENERAL, TASK_SPECIFIC, ANNOUNCEMENTS or PRIVATE_DM")
	}

	return errs
}

func ValidateInvitation(email string) ValidationErrors {
	errs := make(ValidationErrors)
	validateEmail(email, errs)
	return errs
}

func validateEmail(email string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}
}

func validateName(field, label, value string, errs ValidationErrors) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		errs.Add(field, label+" is required")
	case utf8.RuneCountInString(value) > 200:
		errs.Add(field, label+" is too long")
	}
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
