// Package assembler builds the Final Query Document from a finished session.
package assembler

import (
	"github.com/aretw0/quarry/pkg/domain"
)

// Key returns the document key: the source label joined to the query type.
func Key(sourceLabel string, qt domain.QueryType) string {
	return sourceLabel + "_" + string(qt)
}

// Assemble is a pure function of the session's accumulators and session-level fields.
// Every call builds a new document; nothing is shared with the session.
func Assemble(s *domain.Session) domain.QueryDocument {
	doc := domain.QueryDocument{
		Key:             Key(s.Dataset.SourceLabel, s.QueryType),
		FileReference:   s.Dataset.FileReference,
		SamplingFlag:    s.SubsetSampling,
		TaskType:        s.TaskType,
		DroppedColumns:  append([]string{}, s.DroppedColumns...),
		QueryType:       s.QueryType,
		Target:          s.Target.Contract(),
		FixedColumns:    s.FixedColumns.Contract(),
		UserConstraints: s.UserConstraints.Contract(),
		QueryFeatures:   s.QueryFeatures.Contract(),
	}
	if len(s.Samples) > 0 {
		doc.Samples = domain.CloneSamples(s.Samples)
	}
	return doc
}
