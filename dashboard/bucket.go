package dashboard

import "strings"

// SourceBucket is the canonical channel a free-text application source maps to.
type SourceBucket string

const (
	BucketLinkedIn    SourceBucket = "LINKEDIN"
	BucketReferral    SourceBucket = "REFERRAL"
	BucketRecruiter   SourceBucket = "RECRUITER"
	BucketCompanySite SourceBucket = "COMPANY_SITE"
	BucketJobBoard    SourceBucket = "JOB_BOARD"
	BucketOther       SourceBucket = "OTHER"
)

// SourceBuckets lists every bucket in report order.
var SourceBuckets = []SourceBucket{
	BucketLinkedIn,
	BucketReferral,
	BucketRecruiter,
	BucketCompanySite,
	BucketJobBoard,
	BucketOther,
}

func (b SourceBucket) Valid() bool {
	for _, v := range SourceBuckets {
		if v == b {
			return true
		}
	}
	return false
}

// Rules are evaluated in order and the first match wins; several sources
// match more than one bucket.
var bucketRules = []struct {
	bucket  SourceBucket
	needles []string
}{
	{BucketReferral, []string{"referral", "referred", "friend"}},
	{BucketRecruiter, []string{"recruiter", "headhunter", "talent", "sourcer"}},
	{BucketCompanySite, []string{"company site", "site", "careers", "career page", "jobs.", "/careers", "greenhouse", "lever"}},
	{BucketJobBoard, []string{"indeed", "glassdoor", "wellfound", "angel", "xing", "monster", "ziprecruiter",
		"levels.fyi", "remoteok", "weworkremotely", "job board", "board"}},
}

// ClassifySource maps a raw source string to its bucket. It never fails.
func ClassifySource(source string) SourceBucket {
	s := strings.ToLower(strings.TrimSpace(source))
	if s == "" {
		return BucketOther
	}
	if s == "li" || strings.Contains(s, "linkedin") {
		return BucketLinkedIn
	}
	if s == "ref" {
		return BucketReferral
	}
	for _, rule := range bucketRules {
		for _, needle := range rule.needles {
			if strings.Contains(s, needle) {
				return rule.bucket
			}
		}
	}
	return BucketOther
}

func classifyPtr(source *string) SourceBucket {
	if source == nil {
		return BucketOther
	}
	return ClassifySource(*source)
}
