package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Frostie0/braina-game-server/internal/config"
	"github.com/Frostie0/braina-game-server/internal/questions"
)

// Seeds a quiz's question bank into Postgres so the content service can
// serve it. Usage: seed_questions -quiz <id> -file <questions.json>
func main() {
	quizID := flag.String("quiz", "", "quiz identifier")
	file := flag.String("file", "", "path to questions JSON document")
	flag.Parse()

	if *quizID == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "usage: seed_questions -quiz <id> -file <questions.json>")
		os.Exit(1)
	}

	ctx := context.Background()

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *file, err)
		os.Exit(1)
	}
	var doc questions.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal questions: %v\n", err)
		os.Exit(1)
	}
	if err := questions.Validate(doc.Questions); err != nil {
		fmt.Fprintf(os.Stderr, "invalid question set: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	inserted := 0
	for i, q := range doc.Questions {
		optionsBytes, err := json.Marshal(q.Options)
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal options for question %d: %v\n", i, err)
			os.Exit(1)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO quiz_questions (quiz_id, position, type, prompt, options, correct_answer, explanation)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (quiz_id, position) DO UPDATE
			SET type = EXCLUDED.type,
			    prompt = EXCLUDED.prompt,
			    options = EXCLUDED.options,
			    correct_answer = EXCLUDED.correct_answer,
			    explanation = EXCLUDED.explanation`,
			*quizID, i, q.Type, q.Prompt, optionsBytes, q.Correct, q.Explanation,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "insert question %d: %v\n", i, err)
			os.Exit(1)
		}
		inserted++
	}

	fmt.Printf("Seeded %d questions for quiz %s\n", inserted, *quizID)
}
