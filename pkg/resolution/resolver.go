package resolution

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/extractor"
	"github.com/Ramsey-B/briar/pkg/matching"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/normalizers"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// DecisionLogger appends immutable audit rows. Failures are warned and
// swallowed; auditing must never fail a resolution.
type DecisionLogger interface {
	Create(ctx context.Context, decision *models.ResolutionDecision) error
}

// ReviewQueue enqueues pending human decisions. Best-effort like the
// decision log.
type ReviewQueue interface {
	Create(ctx context.Context, entry *models.ReviewQueueEntry) error
}

// Arbitrator is the optional LLM tier consulted in the review band. It
// must return the deterministic score unchanged on any internal failure.
type Arbitrator interface {
	Arbitrate(ctx context.Context, features models.Features, source models.SourceContext, candidate *models.Entity, deterministic models.MatchScore) models.MatchScore
}

// Config carries the resolution thresholds. AutoAcceptThreshold must be
// above ReviewThreshold.
type Config struct {
	AutoAcceptThreshold float64
	ReviewThreshold     float64
}

// definitive key lookup order: corporate filing number first, then tax
// id, then parcel.
var definitiveKeyOrder = []string{"document_number", "tax_id", "parcel_id"}

const definitiveConfidence = 0.999
const provisionalConfidence = 0.60

// Resolver is the top-level resolve-entity state machine.
type Resolver struct {
	store      EntityStore
	finder     *Finder
	matcher    *matching.Matcher
	arbitrator Arbitrator
	decisions  DecisionLogger
	reviews    ReviewQueue
	extractor  *extractor.Extractor
	config     Config
	logger     ectologger.Logger
}

// NewResolver wires the resolution pipeline. arbitrator may be nil, in
// which case the review band goes straight to the human queue.
func NewResolver(
	store EntityStore,
	finder *Finder,
	matcher *matching.Matcher,
	arbitrator Arbitrator,
	decisions DecisionLogger,
	reviews ReviewQueue,
	config Config,
	logger ectologger.Logger,
) *Resolver {
	return &Resolver{
		store:      store,
		finder:     finder,
		matcher:    matcher,
		arbitrator: arbitrator,
		decisions:  decisions,
		reviews:    reviews,
		extractor:  extractor.New(),
		config:     config,
		logger:     logger,
	}
}

// Resolve matches one raw scraped record to a canonical entity. The
// outcome is always a MatchResult; only entity store failures surface as
// errors.
func (r *Resolver) Resolve(ctx context.Context, record map[string]any, source models.SourceContext) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.Resolve")
	defer span.End()

	features := r.extractor.ExtractAllFeatures(record)
	return r.ResolveFeatures(ctx, features, source)
}

// ResolveFeatures runs the state machine on an already-extracted feature
// snapshot.
func (r *Resolver) ResolveFeatures(ctx context.Context, features models.Features, source models.SourceContext) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.ResolveFeatures")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "ResolveFeatures",
		"source_type": source.SourceType,
	})

	// Tier 1: definitive keys. A legal identifier hit ends resolution.
	if result, err := r.tryDefinitiveKeys(ctx, features, source); err != nil {
		return nil, err
	} else if result != nil {
		return result, nil
	}

	// Tier 2: candidate search.
	candidates, err := r.finder.FindCandidates(ctx, features)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		entity, err := r.createEntity(ctx, features, source, 1.0, false)
		if err != nil {
			return nil, err
		}
		result := &models.MatchResult{
			Entity:     entity,
			Confidence: 1.0,
			Method:     models.MethodNoSignals,
			CreatedNew: true,
		}
		r.logDecision(ctx, features, source, entity.ID, models.MatchScore{Confidence: 1.0, Method: models.MethodNoSignals}, false, true)
		log.WithFields(map[string]any{"entity_id": entity.ID}).Info("No candidates; created new entity")
		return result, nil
	}

	// Tier 3: score every candidate, best first.
	type scored struct {
		entity models.Entity
		score  models.MatchScore
	}
	scores := make([]scored, 0, len(candidates))
	for i := range candidates {
		score := r.matcher.ScoreMatch(ctx, features, source, &candidates[i])
		scores = append(scores, scored{entity: candidates[i], score: score})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score.Confidence > scores[j].score.Confidence
	})

	best := scores[0]

	// Tier 4: auto-accept.
	if best.score.Confidence >= r.config.AutoAcceptThreshold {
		if err := r.bindEntity(ctx, &best.entity, features, source, best.score.Confidence); err != nil {
			return nil, err
		}
		r.logDecision(ctx, features, source, best.entity.ID, best.score, true, false)
		log.WithFields(map[string]any{"entity_id": best.entity.ID, "confidence": best.score.Confidence}).Info("Auto-accepted match")
		return &models.MatchResult{
			Entity:     &best.entity,
			Confidence: best.score.Confidence,
			MatchedOn:  best.score.MatchedFields(),
			Method:     best.score.Method,
		}, nil
	}

	// Tier 5: review band, with optional LLM arbitration.
	if best.score.Confidence >= r.config.ReviewThreshold {
		if r.arbitrator != nil {
			arbitrated := r.arbitrator.Arbitrate(ctx, features, source, &best.entity, best.score)
			if arbitrated.Confidence >= r.config.AutoAcceptThreshold {
				if err := r.bindEntity(ctx, &best.entity, features, source, arbitrated.Confidence); err != nil {
					return nil, err
				}
				r.logDecision(ctx, features, source, best.entity.ID, arbitrated, true, false)
				log.WithFields(map[string]any{"entity_id": best.entity.ID, "confidence": arbitrated.Confidence}).Info("LLM-arbitrated match accepted")
				return &models.MatchResult{
					Entity:     &best.entity,
					Confidence: arbitrated.Confidence,
					MatchedOn:  arbitrated.MatchedFields(),
					Method:     models.MethodLLM,
				}, nil
			}
			best.score = arbitrated
		}

		r.enqueueReview(ctx, features, source, best.entity.ID, best.score)
		r.logDecision(ctx, features, source, best.entity.ID, best.score, false, false)
		log.WithFields(map[string]any{"candidate_entity_id": best.entity.ID, "confidence": best.score.Confidence}).Info("Queued match for human review")
		return &models.MatchResult{
			Confidence:  best.score.Confidence,
			MatchedOn:   best.score.MatchedFields(),
			Method:      best.score.Method,
			NeedsReview: true,
		}, nil
	}

	// Tier 6: below the review floor, create a provisional entity rather
	// than silently merging or dropping the record.
	entity, err := r.createEntity(ctx, features, source, provisionalConfidence, true)
	if err != nil {
		return nil, err
	}
	r.logDecision(ctx, features, source, entity.ID, best.score, false, true)
	log.WithFields(map[string]any{"entity_id": entity.ID, "best_confidence": best.score.Confidence}).Info("Low confidence; created provisional entity")
	return &models.MatchResult{
		Entity:      entity,
		Confidence:  provisionalConfidence,
		Method:      best.score.Method,
		CreatedNew:  true,
		NeedsReview: true,
	}, nil
}

// tryDefinitiveKeys returns a terminal result on a legal-identifier hit,
// nil when no definitive key matches.
func (r *Resolver) tryDefinitiveKeys(ctx context.Context, features models.Features, source models.SourceContext) (*models.MatchResult, error) {
	values := map[string]string{
		"document_number": features.DocumentNumber,
		"tax_id":          features.TaxID,
		"parcel_id":       features.ParcelID,
	}

	for _, key := range definitiveKeyOrder {
		value := values[key]
		if value == "" {
			continue
		}
		entity, err := r.store.FindByAttribute(ctx, key, value)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			continue
		}

		if err := r.bindEntity(ctx, entity, features, source, definitiveConfidence); err != nil {
			return nil, err
		}

		score := models.MatchScore{
			Confidence: definitiveConfidence,
			Method:     models.MethodDefinitive,
			Signals: []models.Signal{{
				Name:        key + "_match",
				Value:       1.0,
				Weight:      1.0,
				Explanation: "exact match on definitive identifier " + key,
			}},
			Explanation: "definitive identifier match on " + key,
		}
		r.logDecision(ctx, features, source, entity.ID, score, true, false)

		return &models.MatchResult{
			Entity:     entity,
			Confidence: definitiveConfidence,
			MatchedOn:  []string{key},
			Method:     models.MethodDefinitive,
		}, nil
	}

	return nil, nil
}

// bindEntity merges newly observed attributes into a matched entity and
// raises its confidence. Store errors are fatal.
func (r *Resolver) bindEntity(ctx context.Context, entity *models.Entity, features models.Features, source models.SourceContext, confidence float64) error {
	if entity.Attributes.Data == nil {
		entity.Attributes.Data = map[string]any{}
	}
	mergeAttributes(entity.Attributes.Data, featureAttributes(features))

	if confidence > entity.Confidence {
		entity.Confidence = confidence
	}
	if confidence >= r.config.AutoAcceptThreshold {
		entity.NeedsVerification = false
	}
	sourceType := string(source.SourceType)
	entity.VerificationSource = &sourceType

	return r.store.Update(ctx, entity)
}

// createEntity builds a new canonical entity from the feature snapshot.
func (r *Resolver) createEntity(ctx context.Context, features models.Features, source models.SourceContext, confidence float64, needsVerification bool) (*models.Entity, error) {
	displayName := features.OfficialName
	if displayName == "" {
		displayName = features.Owner
	}

	canonicalName := normalizers.NormalizeName(displayName)
	sourceType := string(source.SourceType)

	entity := &models.Entity{
		Kind:               kindFromFeatures(features),
		CanonicalName:      canonicalName,
		DisplayName:        displayName,
		Confidence:         confidence,
		VerificationSource: &sourceType,
		NeedsVerification:  needsVerification,
		Attributes:         database.JSONB[map[string]any]{Data: featureAttributes(features)},
	}
	if addr := normalizers.NormalizeAddress(features.BestAddress()); addr != "" {
		entity.Address = &addr
	}

	return r.store.Create(ctx, entity)
}

// logDecision writes the audit row, warning on failure. Auditing never
// fails a resolution. createdNew marks rows where the outcome was a fresh
// entity, so training-data consumers can separate creations from matches
// without joining on signals.
func (r *Resolver) logDecision(ctx context.Context, features models.Features, source models.SourceContext, entityID string, score models.MatchScore, autoAccepted, createdNew bool) {
	if r.decisions == nil {
		return
	}

	var entityRef *string
	if entityID != "" {
		entityRef = &entityID
	}

	decision := &models.ResolutionDecision{
		Features:     database.JSONB[models.Features]{Data: features},
		EntityID:     entityRef,
		Confidence:   score.Confidence,
		Signals:      database.JSONB[[]models.Signal]{Data: score.Signals},
		Method:       score.Method,
		SourceType:   source.SourceType,
		AutoAccepted: autoAccepted,
		CreatedNew:   createdNew,
	}

	if err := r.decisions.Create(ctx, decision); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warnf("failed to write resolution decision")
	}
}

// enqueueReview writes the review queue row, warning on failure.
func (r *Resolver) enqueueReview(ctx context.Context, features models.Features, source models.SourceContext, candidateID string, score models.MatchScore) {
	if r.reviews == nil {
		return
	}

	entry := &models.ReviewQueueEntry{
		Features:          database.JSONB[models.Features]{Data: features},
		CandidateEntityID: candidateID,
		Confidence:        score.Confidence,
		Signals:           database.JSONB[[]models.Signal]{Data: score.Signals},
		SourceType:        source.SourceType,
	}

	if err := r.reviews.Create(ctx, entry); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warnf("failed to enqueue review")
	}
}

// featureAttributes flattens the non-empty features into the entity
// attribute bag. Phone and addresses are stored normalized so the exact
// and substring candidate lookups hit them.
func featureAttributes(features models.Features) map[string]any {
	attrs := map[string]any{}
	set := func(key, value string) {
		if value != "" {
			attrs[key] = value
		}
	}
	setList := func(key string, values []string) {
		if len(values) > 0 {
			attrs[key] = values
		}
	}

	set("document_number", features.DocumentNumber)
	set("tax_id", features.TaxID)
	set("legal_designator", features.LegalDesignator)
	set("owner", features.Owner)
	setList("owners", features.Owners)
	setList("principals", features.Principals)
	setList("officers", features.Officers)
	set("registered_agent", features.RegisteredAgent)
	set("principal_address", normalizers.NormalizeAddress(features.PrincipalAddress))
	set("mailing_address", normalizers.NormalizeAddress(features.MailingAddress))
	set("phone", normalizers.NormalizePhone(features.Phone))
	set("email", features.Email)
	set("website", features.Website)
	set("parcel_id", features.ParcelID)
	set("permit_number", features.PermitNumber)

	return attrs
}

// mergeAttributes fills attribute keys the entity does not already have.
// Existing values win; a matched record supplements, never overwrites.
func mergeAttributes(existing, observed map[string]any) {
	for key, value := range observed {
		if _, ok := existing[key]; !ok {
			existing[key] = value
		}
	}
}

// kindFromFeatures derives the entity kind from the legal designator.
func kindFromFeatures(features models.Features) models.EntityKind {
	switch features.LegalDesignator {
	case "LLC":
		return models.EntityKindLLC
	case "INC", "CORP", "LTD":
		return models.EntityKindCorporation
	}
	if features.OfficialName == "" && features.Owner != "" {
		return models.EntityKindPerson
	}
	return models.EntityKindUnknown
}
