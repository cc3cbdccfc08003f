package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/counselgrid/firm-directory/platform/go/persistence"
)

// DefaultCount is the number of firms a full directory seed produces.
const DefaultCount = 205

var specialties = []string{
	"Corporate", "Real Estate", "Family Law", "Criminal Defense",
	"Intellectual Property", "Technology", "Employment", "Labor Law",
	"Tax Law", "Estate Planning", "Immigration", "Personal Injury",
	"Medical Malpractice", "Environmental", "International Trade",
	"Bankruptcy", "Securities", "Healthcare", "Education", "Civil Rights",
}

var suffixes = []string{
	"LLP", "& Associates", "Law Group", "Legal", "Partners",
	"Law Firm", "Attorneys", "Law Office", "Legal Group", "& Partners",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
	"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
	"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark",
	"Ramirez", "Lewis", "Robinson", "Walker", "Young", "Allen", "King",
	"Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores", "Green",
	"Adams", "Nelson", "Baker", "Hall", "Rivera", "Campbell", "Mitchell",
	"Carter", "Roberts",
}

var nonDomainRun = regexp.MustCompile(`[^a-z0-9]+`)

// Metadata is the structured document stored alongside each generated firm.
type Metadata struct {
	Specialties     []string `json:"specialties"`
	YearEstablished int      `json:"yearEstablished"`
	Size            string   `json:"size"`
}

// Firm is a generated directory entry ready to be upserted.
type Firm struct {
	Name     string
	Slug     string
	Website  string
	Active   bool
	Metadata string
}

// Generator produces deterministic batches of fictional law firms from a
// caller-supplied random source.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator builds a Generator. A nil source falls back to a time-seeded
// one, which is what the CLI uses when no seed is given.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rng: rng}
}

// Firms generates count firms with unique names and unique slugs. Slugs are
// drawn through the same uniqueness oracle the service uses, backed by the
// set of slugs already handed out in this batch.
func (g *Generator) Firms(count int) []Firm {
	firms := make([]Firm, 0, count)
	usedNames := make(map[string]bool, count)
	usedSlugs := make(map[string]bool, count)

	slugTaken := func(_ context.Context, slug string) (bool, error) {
		return usedSlugs[slug], nil
	}

	for i := 0; i < count; i++ {
		var name, slug string
		for {
			name = g.firmName()
			if usedNames[name] {
				continue
			}
			// The oracle never fails and the names always slugify, so the
			// error can be ignored here.
			slug, _ = persistence.UniqueSlug(context.Background(), name, slugTaken)
			break
		}

		usedNames[name] = true
		usedSlugs[slug] = true

		firms = append(firms, Firm{
			Name:     name,
			Slug:     slug,
			Website:  fmt.Sprintf("https://%s.example.com", domainName(name)),
			Active:   g.rng.Float64() > 0.1,
			Metadata: g.metadataDocument(),
		})
	}

	return firms
}

func (g *Generator) firmName() string {
	first := lastNames[g.rng.Intn(len(lastNames))]
	suffix := suffixes[g.rng.Intn(len(suffixes))]

	if g.rng.Float64() > 0.5 {
		second := lastNames[g.rng.Intn(len(lastNames))]
		return fmt.Sprintf("%s, %s %s", first, second, suffix)
	}
	return fmt.Sprintf("%s %s", first, suffix)
}

func (g *Generator) metadataDocument() string {
	count := g.rng.Intn(3) + 1

	shuffled := append([]string(nil), specialties...)
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	document := Metadata{
		Specialties:     shuffled[:count],
		YearEstablished: 1950 + g.rng.Intn(73),
		Size:            []string{"Small", "Medium", "Large"}[g.rng.Intn(3)],
	}

	encoded, err := json.Marshal(document)
	if err != nil {
		panic(fmt.Sprintf("marshal generated metadata: %v", err))
	}
	return string(encoded)
}

// domainName squashes a firm name into a bare host label: every run of
// characters outside [a-z0-9] is removed outright, hyphens included.
func domainName(name string) string {
	return nonDomainRun.ReplaceAllString(strings.ToLower(name), "")
}
