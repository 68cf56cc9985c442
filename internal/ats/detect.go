// Package ats classifies a company's careers presence into a known
// applicant-tracking-system identifier using URL patterns and page
// fingerprints.
package ats

import (
	"bytes"
	"strings"

	"github.com/openhire/jobradar/internal/domain"
)

// urlMarkers map hostname fragments to ATS types. Checked before page
// fingerprints because hosted-board URLs are unambiguous.
var urlMarkers = []struct {
	fragment string
	ats      domain.ATSType
}{
	{"boards.greenhouse.io", domain.ATSGreenhouse},
	{"greenhouse.io", domain.ATSGreenhouse},
	{"jobs.lever.co", domain.ATSLever},
	{"lever.co", domain.ATSLever},
	{"myworkdayjobs.com", domain.ATSWorkday},
	{"myworkdaysite.com", domain.ATSWorkday},
	{"jobs.smartrecruiters.com", domain.ATSSmartRecruiters},
	{"careers.smartrecruiters.com", domain.ATSSmartRecruiters},
	{"jobs.ashbyhq.com", domain.ATSAshby},
	{"ashbyhq.com", domain.ATSAshby},
	{".recruitee.com", domain.ATSRecruitee},
	{".bamboohr.com", domain.ATSBambooHR},
}

// pageMarkers are script/meta fingerprints left by ATS embeds on
// self-hosted careers pages.
var pageMarkers = []struct {
	marker []byte
	ats    domain.ATSType
}{
	{[]byte("boards.greenhouse.io/embed"), domain.ATSGreenhouse},
	{[]byte("grnhse.io"), domain.ATSGreenhouse},
	{[]byte("lever.co/postings"), domain.ATSLever},
	{[]byte("lever-jobs"), domain.ATSLever},
	{[]byte("myworkdayjobs.com"), domain.ATSWorkday},
	{[]byte("smartrecruiters.com/widget"), domain.ATSSmartRecruiters},
	{[]byte("jobs.ashbyhq.com"), domain.ATSAshby},
	{[]byte("_ashby"), domain.ATSAshby},
	{[]byte("recruitee.com/api"), domain.ATSRecruitee},
	{[]byte("bamboohr.com/jobs/embed"), domain.ATSBambooHR},
}

// Detect classifies a careers URL and optional page body. Body may be nil
// when only the URL is known; an unrecognized combination yields
// domain.ATSUnknown.
func Detect(careersURL string, body []byte) domain.ATSType {
	lowered := strings.ToLower(careersURL)
	for _, m := range urlMarkers {
		if strings.Contains(lowered, m.fragment) {
			return m.ats
		}
	}
	if len(body) > 0 {
		lowerBody := bytes.ToLower(body)
		for _, m := range pageMarkers {
			if bytes.Contains(lowerBody, m.marker) {
				return m.ats
			}
		}
	}
	return domain.ATSUnknown
}

// Supported reports whether the ATS is on the allow-list for the fully
// automated pipeline.
func Supported(t domain.ATSType) bool {
	return domain.SupportedATS[t]
}
