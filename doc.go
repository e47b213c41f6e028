/*
Package quarry is a conversational workflow engine that walks a user through configuring a
data-analysis query and produces one Final Query Document.

The engine is a finite-state dialogue driver. A session moves through a fixed sequence of
phases (action selection, data ingestion, sampling, column dropping, targets, query features,
constraints, task type) and each free-text utterance is parsed with the grammar of the active
phase. Column mentions are matched against the dataset's header with a fuzzy resolver, so
"house age" finds "house_age".

# Concept

The engine is stateless. A Session is an owned value: Dispatch takes a snapshot and an Event
and returns the next snapshot without touching the input. Hosts (CLI, HTTP server, MCP agent)
own persistence and serialize events per session, usually through session.Manager.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/quarry"
		"github.com/aretw0/quarry/pkg/adapters/csvsource"
		"github.com/aretw0/quarry/pkg/domain"
	)

	func main() {
		ctx := context.Background()
		eng := quarry.New()

		s, err := eng.Start(ctx, "session-123")
		if err != nil {
			log.Fatal(err)
		}

		in, err := csvsource.Open("housing.csv")
		if err != nil {
			log.Fatal(err)
		}

		for _, ev := range []domain.Event{
			domain.SelectAction(domain.QueryRecommend),
			domain.Ingest(in),
			domain.DropColumns(),
			domain.Utterance("maximize income"),
			domain.Finish(),
			domain.Utterance("recommend on age"),
			domain.Finish(),
			domain.Utterance("regression"),
		} {
			if s, err = eng.Dispatch(ctx, s, ev); err != nil {
				log.Fatal(err)
			}
		}

		fmt.Println(s.Document.Key)
	}
*/
package quarry
