package handlers

import (
	"context"
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"fortunegate/internal/cohort"
	"fortunegate/internal/pool"
)

var mbtiPattern = regexp.MustCompile(`(?i)^[EI][NS][TF][JP]$`)

var dateRule = validation.By(func(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, ok := cohort.ParseDate(s); !ok {
		return errors.New("must be a date such as 1990-05-15")
	}
	return nil
})

func validateFortuneInput(ctx context.Context, fortuneType string, in *cohort.Input) error {
	return validation.ValidateStructWithContext(ctx, in,
		validation.Field(&in.Name, validation.Length(0, 50)),
		validation.Field(&in.UserName, validation.Length(0, 50)),
		validation.Field(&in.BirthDate, dateRule),
		validation.Field(&in.Date, dateRule),
		validation.Field(&in.Person1BirthDate, dateRule),
		validation.Field(&in.Person2BirthDate, dateRule),
		validation.Field(&in.Age, validation.Min(0), validation.Max(150)),
		validation.Field(&in.MBTI, validation.Match(mbtiPattern)),
		validation.Field(&in.Question, validation.Length(0, 500)),
		validation.Field(&in.DreamContent,
			validation.Length(0, 2000),
			validation.When(fortuneType == "dream" && in.Dream == "", validation.Required.Error("dream_content is required")),
		),
		validation.Field(&in.Dream, validation.Length(0, 2000)),
	)
}

func validateGenerateRequest(ctx context.Context, req *pool.GenerateRequest) error {
	return validation.ValidateStructWithContext(ctx, req,
		validation.Field(&req.FortuneType, validation.Required),
		validation.Field(&req.MaxCohorts, validation.Min(0)),
		validation.Field(&req.TargetSize, validation.Min(0), validation.Max(int(pool.DefaultMaxSize))),
	)
}
