// Package content manages announcements and blog posts through a
// draft, review and publish workflow. Submissions can be pre-screened by
// an AI model; the verdict is advisory and an admin always decides.
package content
