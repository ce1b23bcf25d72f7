package features

import (
	"context"
	"math"
	"strings"

	"github.com/benidevo/matchcore/internal/matchcore/geo"
	"github.com/benidevo/matchcore/internal/matchcore/model"
)

// workModeCompat is the fixed 3×3 compatibility matrix between a candidate's
// desired work mode (row) and the job's offered mode (column). Hybrid pivots
// at 0.7; remote↔office is 0.2.
var workModeCompat = map[model.WorkMode]map[model.WorkMode]float64{
	model.WorkModeRemote: {
		model.WorkModeRemote: 1.0, model.WorkModeHybrid: 0.7, model.WorkModeOffice: 0.2,
	},
	model.WorkModeHybrid: {
		model.WorkModeRemote: 0.7, model.WorkModeHybrid: 1.0, model.WorkModeOffice: 0.7,
	},
	model.WorkModeOffice: {
		model.WorkModeRemote: 0.2, model.WorkModeHybrid: 0.7, model.WorkModeOffice: 1.0,
	},
}

// contractCompat scores candidate desired contract (row) against job
// contract type (column).
var contractCompat = map[string]map[string]float64{
	"permanent": {"permanent": 1.0, "fixed-term": 0.5, "freelance": 0.2, "internship": 0.1},
	"fixed-term": {"permanent": 0.8, "fixed-term": 1.0, "freelance": 0.4, "internship": 0.2},
	"freelance": {"permanent": 0.3, "fixed-term": 0.5, "freelance": 1.0, "internship": 0.1},
	"internship": {"permanent": 0.4, "fixed-term": 0.4, "freelance": 0.2, "internship": 1.0},
}

// companySizeCompat scores desired company size (row) against actual
// (column); adjacent sizes stay acceptable.
var companySizeCompat = map[string]map[string]float64{
	"startup": {"startup": 1.0, "sme": 0.7, "enterprise": 0.3},
	"sme":     {"startup": 0.7, "sme": 1.0, "enterprise": 0.7},
	"enterprise": {"startup": 0.3, "sme": 0.7, "enterprise": 1.0},
}

// travelLevels orders travel willingness/requirement: none < low < medium < high.
var travelLevels = map[string]int{"none": 0, "low": 1, "medium": 2, "high": 3}

// PreferenceGenerator scores candidate preferences against job attributes:
// location, salary, work mode, contract, company size, industry, travel.
type PreferenceGenerator struct {
	geo *geo.Client
}

// NewPreferenceGenerator builds the generator. geoClient may be nil; location
// scoring then falls back to the substring heuristic.
func NewPreferenceGenerator(geoClient *geo.Client) *PreferenceGenerator {
	return &PreferenceGenerator{geo: geoClient}
}

func (g *PreferenceGenerator) Name() string { return "preference" }

// Generate emits the pref_ feature family.
func (g *PreferenceGenerator) Generate(ctx context.Context, req model.MatchRequest) (map[string]float64, error) {
	prefs := req.Candidate.Preferences
	out := make(map[string]float64)

	// A preference dimension unknown on either side is omitted rather than
	// scored neutrally, so absent data never drags a category mean.
	if req.Candidate.Location != "" && req.Job.Location != "" {
		out["pref_location"] = g.locationScore(ctx, req.Candidate.Location, req.Job.Location)
	}
	if prefs.DesiredSalary.Max > 0 && req.Job.SalaryRange.Max > 0 {
		out["pref_salary"] = salaryScore(prefs.DesiredSalary, req.Job.SalaryRange)
	}
	if prefs.DesiredWorkMode != "" && req.Job.WorkMode != "" {
		out["pref_work_mode"] = matrixScore3(workModeCompat, prefs.DesiredWorkMode, req.Job.WorkMode)
	}
	if prefs.DesiredContract != "" && req.Job.ContractType != "" {
		out["pref_contract"] = stringMatrixScore(contractCompat, prefs.DesiredContract, req.Job.ContractType)
	}
	if size := companySizeOf(req.Job); prefs.DesiredCompanySize != "" && size != "" {
		out["pref_company_size"] = stringMatrixScore(companySizeCompat, prefs.DesiredCompanySize, size)
	}
	if prefs.DesiredIndustry != "" && req.Job.Industry != "" {
		out["pref_industry"] = industryScore(prefs.DesiredIndustry, req.Job.Industry)
	}
	if requirement := travelRequirementOf(req.Job); requirement != "" {
		out["pref_travel_willingness"] = travelScore(prefs.TravelWillingness, requirement)
	}

	return out, nil
}

// locationScore: exact city 1.0, substring 0.9, then
// geodesic-distance bands via GeoClient; 0.1 when nothing matches.
func (g *PreferenceGenerator) locationScore(ctx context.Context, candidateLoc, jobLoc string) float64 {
	cand := normalizeLocation(candidateLoc)
	job := normalizeLocation(jobLoc)

	if cand == "" || job == "" {
		return 0.5
	}
	if cand == job {
		return 1.0
	}
	if strings.Contains(cand, job) || strings.Contains(job, cand) {
		return 0.9
	}

	if g.geo != nil {
		if km, err := g.geodesicKm(ctx, candidateLoc, jobLoc); err == nil {
			switch {
			case km < 10:
				return 0.9
			case km < 30:
				return 0.7
			case km < 100:
				return 0.5
			case km < 300:
				return 0.3
			}
			return 0.1
		}
	}

	return 0.1
}

func (g *PreferenceGenerator) geodesicKm(ctx context.Context, a, b string) (float64, error) {
	locA, err := g.geo.Geocode(ctx, a)
	if err != nil {
		return 0, err
	}
	locB, err := g.geo.Geocode(ctx, b)
	if err != nil {
		return 0, err
	}
	return haversineKm(locA, locB), nil
}

// haversineKm computes great-circle distance between two coordinates.
func haversineKm(a, b geo.Location) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func normalizeLocation(loc string) string {
	return strings.ToLower(strings.TrimSpace(loc))
}

// salaryScore computes the overlap ratio of the candidate's expected range
// and the job's offered range: 0.9 when the job strictly dominates the ask,
// decaying with the shortfall when the job offers less.
func salaryScore(desired, offered model.SalaryRange) float64 {
	if desired.Max <= 0 || offered.Max <= 0 {
		return 0.5
	}

	// Job floor at or above the candidate's ceiling: more than asked for.
	if offered.Min >= desired.Max {
		return 0.9
	}

	overlap := math.Min(float64(offered.Max), float64(desired.Max)) -
		math.Max(float64(offered.Min), float64(desired.Min))
	width := float64(desired.Max - desired.Min)
	if width <= 0 {
		width = float64(desired.Max) * 0.1
	}

	if overlap > 0 {
		return clip(overlap / width)
	}

	// No overlap and the job pays below the ask: decay with the gap.
	gap := float64(desired.Min - offered.Max)
	if gap <= 0 {
		return 0.2
	}
	return clip(0.2 * (1 - gap/float64(desired.Min)))
}

func matrixScore3(matrix map[model.WorkMode]map[model.WorkMode]float64, desired, actual model.WorkMode) float64 {
	if desired == "" || actual == "" {
		return 0.5
	}
	if row, ok := matrix[desired]; ok {
		if score, ok := row[actual]; ok {
			return score
		}
	}
	return 0.5
}

func stringMatrixScore(matrix map[string]map[string]float64, desired, actual string) float64 {
	desired = strings.ToLower(strings.TrimSpace(desired))
	actual = strings.ToLower(strings.TrimSpace(actual))
	if desired == "" || actual == "" {
		return 0.5
	}
	if desired == actual {
		return 1.0
	}
	if row, ok := matrix[desired]; ok {
		if score, ok := row[actual]; ok {
			return score
		}
	}
	return 0.3
}

func industryScore(desired, actual string) float64 {
	desired = strings.ToLower(strings.TrimSpace(desired))
	actual = strings.ToLower(strings.TrimSpace(actual))
	switch {
	case desired == "" || actual == "":
		return 0.5
	case desired == actual:
		return 1.0
	case strings.Contains(actual, desired) || strings.Contains(desired, actual):
		return 0.8
	}
	return 0.3
}

// travelScore compares willingness against requirement on the ordered
// none < low < medium < high scale: meeting the requirement scores 1.0, each
// level short roughly halves the score.
func travelScore(willingness, requirement string) float64 {
	will, okW := travelLevels[strings.ToLower(strings.TrimSpace(willingness))]
	req, okR := travelLevels[strings.ToLower(strings.TrimSpace(requirement))]
	if !okR {
		return 1.0
	}
	if !okW {
		will = 0
	}

	if will >= req {
		return 1.0
	}
	switch req - will {
	case 1:
		return 0.6
	case 2:
		return 0.3
	}
	return 0.1
}

// companySizeOf infers a coarse company size from the posting's free text.
func companySizeOf(j model.JobPosting) string {
	text := strings.ToLower(j.FreeText)
	switch {
	case strings.Contains(text, "startup"):
		return "startup"
	case strings.Contains(text, "enterprise") || strings.Contains(text, "multinational"):
		return "enterprise"
	case strings.Contains(text, "sme") || strings.Contains(text, "mid-size") || strings.Contains(text, "scale-up"):
		return "sme"
	}
	return ""
}

// travelRequirementOf infers the job's travel requirement from free text.
func travelRequirementOf(j model.JobPosting) string {
	text := strings.ToLower(j.FreeText)
	switch {
	case strings.Contains(text, "frequent travel") || strings.Contains(text, "extensive travel"):
		return "high"
	case strings.Contains(text, "regular travel") || strings.Contains(text, "monthly travel"):
		return "medium"
	case strings.Contains(text, "occasional travel") || strings.Contains(text, "some travel"):
		return "low"
	}
	return ""
}
