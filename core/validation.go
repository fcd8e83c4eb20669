package core

import "strings"

// ValidationRule checks one precondition on the parameter envelope.
type ValidationRule func(params ProcessParameter) error

// ValidateParameters runs rules in order and stops at the first failure.
func ValidateParameters(params ProcessParameter, rules ...ValidationRule) error {
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if err := rule(params); err != nil {
			return err
		}
	}
	return nil
}

func RequireOrganizationVerification(params ProcessParameter) error {
	if params.OrganizationVerification == nil {
		return ValidationFailed("organizationVerification", "organization verification parameters are required")
	}
	return nil
}

func RequireOrganizationID(params ProcessParameter) error {
	if err := RequireOrganizationVerification(params); err != nil {
		return err
	}
	if strings.TrimSpace(params.OrganizationVerification.OrganizationID) == "" {
		return ValidationFailed("organizationVerification.organizationId", "organization id is required")
	}
	return nil
}

func RequireFundingCalculation(params ProcessParameter) error {
	if params.FundingCalculation == nil {
		return ValidationFailed("fundingCalculation", "funding calculation parameters are required")
	}
	if strings.TrimSpace(params.FundingCalculation.ApplicationID) == "" {
		return ValidationFailed("fundingCalculation.applicationId", "application id is required")
	}
	return nil
}

func RequireNotification(params ProcessParameter) error {
	if params.Notification == nil {
		return ValidationFailed("notification", "notification parameters are required")
	}
	if strings.TrimSpace(params.Notification.ProgramID) == "" {
		return ValidationFailed("notification.programId", "program id is required")
	}
	if strings.TrimSpace(params.Notification.Subject) == "" {
		return ValidationFailed("notification.subject", "subject is required")
	}
	return nil
}

func RequireInactiveClosure(params ProcessParameter) error {
	if params.InactiveClosure == nil {
		return ValidationFailed("inactiveClosure", "inactive closure parameters are required")
	}
	if strings.TrimSpace(params.InactiveClosure.EntitySet) == "" {
		return ValidationFailed("inactiveClosure.entitySet", "entity set is required")
	}
	if params.InactiveClosure.InactiveDays <= 0 {
		return ValidationFailed("inactiveClosure.inactiveDays", "inactive days must be positive")
	}
	if params.InactiveClosure.MaxRecords < 0 {
		return ValidationFailed("inactiveClosure.maxRecords", "max records must not be negative")
	}
	return nil
}

func RequireCallerID(params ProcessParameter) error {
	if strings.TrimSpace(params.CallerID) == "" {
		return ValidationFailed("callerId", "caller id is required")
	}
	return nil
}
