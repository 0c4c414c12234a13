package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parleyhq/parley/types"
)

// Layout names reported in debug logs.
const (
	layoutV2      = "v2"
	layoutScraped = "scraped"
	layoutLegacy  = "legacy"
)

var (
	// headerTurnPattern matches "### Name ###" delimiter lines (v2, legacy).
	headerTurnPattern = regexp.MustCompile(`(?m)^###[ \t]+(.+?)[ \t]+###[ \t]*$`)
	// bareTurnPattern matches "<name>" delimiter lines (scraped archive).
	bareTurnPattern = regexp.MustCompile(`(?m)^<([^>\n#]+)>[ \t]*$`)
	// systemBlockPattern captures "<name#SYSTEM>\n …\n</s>" blocks.
	systemBlockPattern = regexp.MustCompile(`(?ms)^<([^>\n#]+)#SYSTEM>\n(.*?)\n</s>[ \t]*$`)
	// contextTagPattern marks "<name#CONTEXT>" blocks; their JSON runs to
	// the next tag line.
	contextTagPattern = regexp.MustCompile(`(?m)^<([^>\n#]+)#CONTEXT>[ \t]*$`)
	// anyTagPattern finds any tag-shaped line; used to bound context blocks.
	anyTagPattern = regexp.MustCompile(`(?m)^<[^>\n]+>[ \t]*$`)
	// scrapedBannerPattern appears in the first line or the filename of
	// archive transcripts.
	scrapedBannerPattern = regexp.MustCompile(`conversation_(\d+)_scenario_(.+?)\.txt`)

	scrapedActorsPattern = regexp.MustCompile(`(?m)^actors:[ \t]*(.+)$`)
	scrapedModelsPattern = regexp.MustCompile(`(?m)^models:[ \t]*(.+)$`)
	scrapedTempPattern   = regexp.MustCompile(`(?m)^temp:[ \t]*(.+)$`)
)

// Parser reconstructs Records from transcript text. Header layouts are tried
// in a fixed order (v2, scraped archive, legacy) and the first full match
// wins; anomalies inside a matched layout are soft flags, never errors.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser. logger may be nil.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger.With(zap.String("component", "transcript_parser"))}
}

// ParseFile reads and parses one transcript from disk.
func (p *Parser) ParseFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return p.Parse(filepath.Base(path), data)
}

// Parse reconstructs a Record from raw transcript bytes. filename is
// consulted by layouts that encode metadata in the name. When no layout
// fully matches the header the error carries UNRECOGNIZED_HEADER_FORMAT and
// no partial record is returned.
func (p *Parser) Parse(filename string, data []byte) (*Record, error) {
	text := string(data)

	strategies := []struct {
		name  string
		parse func(filename, text string) (*Record, bool)
	}{
		{layoutV2, p.parseV2},
		{layoutScraped, p.parseScraped},
		{layoutLegacy, p.parseLegacy},
	}
	for _, s := range strategies {
		rec, ok := s.parse(filename, text)
		if !ok {
			continue
		}
		verifyRoundRobin(rec)
		p.logger.Debug("transcript parsed",
			zap.String("layout", s.name),
			zap.String("file", filename),
			zap.Int("actors", len(rec.Actors)),
			zap.Int("turns", len(rec.Turns)),
			zap.Int("anomalies", len(rec.Anomalies)))
		return rec, nil
	}
	return nil, types.Errorf(types.ErrUnrecognizedHeader, "%s matches no known transcript layout", filename)
}

// ---- v2: the writer's own layout ----

func (p *Parser) parseV2(_ string, text string) (*Record, bool) {
	header, bodyStart, ok := scanKeyedHeader(text)
	if !ok {
		return nil, false
	}
	for _, req := range []string{"template", "models", "actors", "temp", "started"} {
		if _, present := header[req]; !present {
			return nil, false
		}
	}
	for key := range header {
		switch key {
		case "template", "models", "actors", "temp", "started", "run", "status":
		default:
			return nil, false
		}
	}
	started, err := time.Parse(time.RFC3339, header["started"])
	if err != nil {
		return nil, false
	}
	actors := splitCommaList(header["actors"])
	if len(actors) == 0 {
		return nil, false
	}

	rec := &Record{
		Actors:        actors,
		SystemPrompts: make([]*string, len(actors)),
		Timestamp:     started,
		Template:      header["template"],
		Status:        header["status"],
	}
	backendIDs := splitUnderscoreList(header["models"])
	if len(backendIDs) != len(actors) {
		rec.flag(AnomalyHeader, fmt.Sprintf("models list has %d entries, actors list has %d", len(backendIDs), len(actors)))
	}
	rec.BackendIDs = fitLength(backendIDs, len(actors))
	rec.Temperatures = parseTempList(header["temp"], len(actors), rec)

	body := text[bodyStart:]
	matcher := newActorMatcher(rec.Actors, rec.BackendIDs)
	skip := extractSystemBlocks(body, matcher, rec)
	rec.Turns = assembleTurns(body, headerTurnPattern, matcher, skip)
	return rec, true
}

// ---- scraped archive layout ----

func (p *Parser) parseScraped(filename, text string) (*Record, bool) {
	unix, scenario, ok := scrapedBanner(filename, text)
	if !ok {
		return nil, false
	}
	actorsMatch := scrapedActorsPattern.FindStringSubmatch(text)
	modelsMatch := scrapedModelsPattern.FindStringSubmatch(text)
	if actorsMatch == nil || modelsMatch == nil {
		return nil, false
	}
	actors := splitCommaList(actorsMatch[1])
	if len(actors) == 0 {
		return nil, false
	}

	rec := &Record{
		Actors:        actors,
		SystemPrompts: make([]*string, len(actors)),
		Timestamp:     time.Unix(unix, 0).UTC(),
		Template:      scenario,
	}
	backendIDs := splitCommaList(modelsMatch[1])
	if len(backendIDs) != len(actors) {
		rec.flag(AnomalyHeader, fmt.Sprintf("models list has %d entries, actors list has %d", len(backendIDs), len(actors)))
	}
	rec.BackendIDs = fitLength(backendIDs, len(actors))
	if tempMatch := scrapedTempPattern.FindStringSubmatch(text); tempMatch != nil {
		rec.Temperatures = parseTempList(tempMatch[1], len(actors), rec)
	}

	matcher := newActorMatcher(rec.Actors, rec.BackendIDs)
	skip := extractSystemBlocks(text, matcher, rec)
	skip = append(skip, contextBlockSpans(text)...)
	rec.Turns = assembleTurns(text, bareTurnPattern, matcher, skip)
	return rec, true
}

// scrapedBanner extracts the unix timestamp and scenario name from the first
// non-blank line or, failing that, from the filename.
func scrapedBanner(filename, text string) (int64, string, bool) {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	firstLine = strings.TrimSpace(firstLine)
	if strings.HasPrefix(firstLine, "#") {
		if m := scrapedBannerPattern.FindStringSubmatch(firstLine); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				return n, m[2], true
			}
		}
	}
	if m := scrapedBannerPattern.FindStringSubmatch(filename); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return n, m[2], true
		}
	}
	return 0, "", false
}

// contextBlockSpans bounds every <name#CONTEXT> block: the JSON payload runs
// until the next tag-shaped line or end of input. The payload itself is not
// part of the record; recreation reseeds context from the turns instead.
func contextBlockSpans(text string) []span {
	tags := anyTagPattern.FindAllStringIndex(text, -1)
	var spans []span
	for _, loc := range contextTagPattern.FindAllStringIndex(text, -1) {
		end := len(text)
		for _, tag := range tags {
			if tag[0] > loc[1] {
				end = tag[0]
				break
			}
		}
		spans = append(spans, span{loc[0], end})
	}
	return spans
}

// ---- legacy layout ----

func (p *Parser) parseLegacy(_ string, text string) (*Record, bool) {
	header, bodyStart, ok := scanKeyedHeader(text)
	if !ok {
		return nil, false
	}
	for _, req := range []string{"models", "template", "timestamp"} {
		if _, present := header[req]; !present {
			return nil, false
		}
	}
	for key := range header {
		switch key {
		case "models", "template", "timestamp":
		default:
			// A temperature line (or anything else) means this is not the
			// first-generation layout.
			return nil, false
		}
	}
	ts, err := time.Parse("20060102_150405", header["timestamp"])
	if err != nil {
		return nil, false
	}
	models := splitUnderscoreList(header["models"])
	if len(models) == 0 {
		return nil, false
	}

	// Actor names exist only in the delimiters: collect first appearances
	// until the set reaches the model count or a name repeats.
	body := text[bodyStart:]
	var actors []string
	seen := make(map[string]bool)
	for _, loc := range headerTurnPattern.FindAllStringSubmatchIndex(body, -1) {
		name := strings.TrimSpace(body[loc[2]:loc[3]])
		key := normalizeName(name)
		if seen[key] {
			break
		}
		seen[key] = true
		actors = append(actors, name)
		if len(actors) == len(models) {
			break
		}
	}
	if len(actors) == 0 {
		return nil, false
	}

	rec := &Record{
		Actors:        actors,
		SystemPrompts: make([]*string, len(actors)),
		Timestamp:     ts,
		Template:      header["template"],
	}
	if len(actors) < len(models) {
		rec.flag(AnomalyActorDiscovery, fmt.Sprintf("header promised %d models, delimiters revealed %d actors", len(models), len(actors)))
	}
	rec.BackendIDs = fitLength(models, len(actors))

	matcher := newActorMatcher(rec.Actors, rec.BackendIDs)
	rec.Turns = assembleTurns(body, headerTurnPattern, matcher, nil)
	return rec, true
}

// ---- shared machinery ----

// scanKeyedHeader reads leading "key: value" lines until a blank line or end
// of input. Any malformed leading line rejects the scan.
func scanKeyedHeader(text string) (map[string]string, int, bool) {
	header := make(map[string]string)
	offset := 0
	for offset < len(text) {
		next := len(text)
		line := text[offset:]
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
			next = offset + i + 1
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return header, next, len(header) > 0
		}
		colon := strings.IndexByte(trimmed, ':')
		if colon <= 0 {
			return nil, 0, false
		}
		key := strings.ToLower(strings.TrimSpace(trimmed[:colon]))
		if key == "" || strings.ContainsAny(key, " \t") {
			return nil, 0, false
		}
		header[key] = strings.TrimSpace(trimmed[colon+1:])
		offset = next
	}
	return header, len(text), len(header) > 0
}

// span is a half-open byte range of body text already claimed by a header
// block; delimiters inside it are not turn boundaries.
type span struct{ start, end int }

func inSpans(pos int, spans []span) bool {
	for _, s := range spans {
		if pos >= s.start && pos < s.end {
			return true
		}
	}
	return false
}

// actorMatcher resolves delimiter names against the header's ordered actor
// list, case-insensitively and whitespace-tolerantly, by display name first
// and backend id second.
type actorMatcher struct {
	byName map[string]int
}

func newActorMatcher(actors, backendIDs []string) *actorMatcher {
	m := &actorMatcher{byName: make(map[string]int, len(actors)*2)}
	for i, a := range actors {
		key := normalizeName(a)
		if _, taken := m.byName[key]; !taken && key != "" {
			m.byName[key] = i
		}
	}
	for i, id := range backendIDs {
		key := normalizeName(id)
		if _, taken := m.byName[key]; !taken && key != "" {
			m.byName[key] = i
		}
	}
	return m
}

func (m *actorMatcher) index(name string) (int, bool) {
	i, ok := m.byName[normalizeName(name)]
	return i, ok
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// extractSystemBlocks records every resolvable <name#SYSTEM> block into the
// record's prompt slots and returns the byte ranges the blocks occupy.
// Unresolvable names leave their bytes untouched.
func extractSystemBlocks(body string, m *actorMatcher, rec *Record) []span {
	var spans []span
	for _, loc := range systemBlockPattern.FindAllStringSubmatchIndex(body, -1) {
		name := body[loc[2]:loc[3]]
		idx, ok := m.index(name)
		if !ok {
			continue
		}
		if rec.SystemPrompts[idx] == nil {
			content := body[loc[4]:loc[5]]
			rec.SystemPrompts[idx] = &content
		}
		spans = append(spans, span{loc[0], loc[1]})
	}
	return spans
}

// assembleTurns splits the body at resolvable delimiter lines. A
// delimiter-shaped line whose name matches no actor is plain content of the
// current turn, since generated text may legitimately contain such lines.
// Content is preserved byte-for-byte minus the delimiter's own framing
// newlines.
func assembleTurns(body string, pattern *regexp.Regexp, m *actorMatcher, skip []span) []Turn {
	type delim struct {
		lineStart    int
		contentStart int
		actor        int
	}
	var delims []delim
	for _, loc := range pattern.FindAllStringSubmatchIndex(body, -1) {
		if inSpans(loc[0], skip) {
			continue
		}
		idx, ok := m.index(body[loc[2]:loc[3]])
		if !ok {
			continue
		}
		contentStart := loc[1]
		if contentStart < len(body) && body[contentStart] == '\n' {
			contentStart++
		}
		delims = append(delims, delim{lineStart: loc[0], contentStart: contentStart, actor: idx})
	}

	turns := make([]Turn, 0, len(delims))
	for i, d := range delims {
		end := len(body)
		if i+1 < len(delims) {
			end = delims[i+1].lineStart
		}
		content := body[d.contentStart:end]
		if i+1 < len(delims) && strings.HasSuffix(content, "\n\n") {
			content = content[:len(content)-2]
		} else {
			content = strings.TrimSuffix(content, "\n")
		}
		turns = append(turns, Turn{ActorIndex: d.actor, Content: content})
	}
	return turns
}

// verifyRoundRobin flags the first deviation from strict a = t mod N order.
func verifyRoundRobin(rec *Record) {
	n := len(rec.Actors)
	if n == 0 {
		return
	}
	for i, t := range rec.Turns {
		if t.ActorIndex != i%n {
			rec.flag(AnomalyRoundRobin, fmt.Sprintf("turn %d spoken by actor %d, expected %d", i, t.ActorIndex, i%n))
			return
		}
	}
}

func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitUnderscoreList(s string) []string {
	parts := strings.Split(s, "_")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseTempList parses a comma-separated temperature list, flagging (not
// failing) count mismatches and unparseable values.
func parseTempList(s string, actorCount int, rec *Record) []float64 {
	parts := splitCommaList(s)
	temps := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			rec.flag(AnomalyHeader, fmt.Sprintf("unparseable temperature %q", p))
			return nil
		}
		temps = append(temps, v)
	}
	if len(temps) == 0 {
		rec.flag(AnomalyHeader, "empty temperature list")
		return nil
	}
	if len(temps) != actorCount {
		rec.flag(AnomalyHeader, fmt.Sprintf("temperature list has %d entries for %d actors", len(temps), actorCount))
	}
	return temps
}

// fitLength pads with empty strings or truncates so the record's parallel
// slices stay equal length.
func fitLength(in []string, n int) []string {
	out := make([]string, n)
	copy(out, in)
	return out
}
