// Package lead implements the gestors' sales pipeline: prospective
// companies moving through stages, follow-up tasks with reminders, and
// conversion of won leads into onboarding companies.
package lead
