package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v84"
)

// Diagnostics is the log-only view of a failure. None of it reaches clients.
type Diagnostics struct {
	Message string
	Code    Code
	Chain   []string

	Postgres *PostgresDetail
	Stripe   *StripeDetail
}

type PostgresDetail struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
}

type StripeDetail struct {
	Type        string
	Code        string
	DeclineCode string
	Param       string
	RequestID   string
	HTTPStatus  int
}

// Diagnose walks the error chain and pulls out driver and provider detail.
func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.Postgres = &PostgresDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
		}
	case errors.As(err, &pqErr):
		d.Postgres = &PostgresDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
		}
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		d.Stripe = &StripeDetail{
			Type:        string(stripeErr.Type),
			Code:        string(stripeErr.Code),
			DeclineCode: string(stripeErr.DeclineCode),
			Param:       stripeErr.Param,
			RequestID:   stripeErr.RequestID,
			HTTPStatus:  stripeErr.HTTPStatusCode,
		}
	}
	return d
}

// Fields flattens the diagnostics into structured log fields, omitting
// sections that do not apply.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_constraint"] = pg.Constraint
		fields["pg_table"] = pg.Table
		fields["pg_column"] = pg.Column
		fields["pg_detail"] = pg.Detail
	}
	if s := d.Stripe; s != nil {
		fields["stripe_error_type"] = s.Type
		fields["stripe_error_code"] = s.Code
		fields["stripe_request_id"] = s.RequestID
		fields["stripe_http_status"] = s.HTTPStatus
		if s.DeclineCode != "" {
			fields["stripe_decline_code"] = s.DeclineCode
		}
		if s.Param != "" {
			fields["stripe_param"] = s.Param
		}
	}
	return fields
}
