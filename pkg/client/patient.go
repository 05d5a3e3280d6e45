package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sourcegraph/conc"
)

// PatientData is the signed-in patient's dashboard, assembled client side.
type PatientData struct {
	Symptoms      []*SymptomLog
	BMIHistory    []*BMIRecord
	LatestVitals  *Vitals
	VitalsHistory []*Vitals
	// Failed names the parts whose fetch failed and were left empty.
	Failed []string
}

const (
	symptomHistoryLimit = 20
	bmiHistoryLimit     = 10
	vitalsHistoryLimit  = 20
)

// PatientData fetches the four dashboard parts concurrently and joins them.
// A failed part is left empty and named in Failed. If the client is closed
// while the fetch is in flight the result is discarded and ErrClosed is
// returned.
func (c *Client) PatientData(ctx context.Context) (*PatientData, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	var (
		d                     PatientData
		symErr, bmiErr        error
		latestErr, historyErr error
	)
	var wg conc.WaitGroup
	wg.Go(func() {
		symErr = c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/symptoms?limit=%d", symptomHistoryLimit), nil, &d.Symptoms)
	})
	wg.Go(func() {
		bmiErr = c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/bmi?limit=%d", bmiHistoryLimit), nil, &d.BMIHistory)
	})
	wg.Go(func() {
		latestErr = c.do(ctx, http.MethodGet, "/api/v1/vitals/latest", nil, &d.LatestVitals)
	})
	wg.Go(func() {
		historyErr = c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/vitals?limit=%d", vitalsHistoryLimit), nil, &d.VitalsHistory)
	})
	wg.Wait()

	if c.State() == StateClosed {
		return nil, ErrClosed
	}

	for _, part := range []struct {
		name string
		err  error
	}{
		{"symptoms", symErr},
		{"bmi", bmiErr},
		{"latest_vitals", latestErr},
		{"vitals_history", historyErr},
	} {
		if part.err != nil {
			d.Failed = append(d.Failed, part.name)
		}
	}
	if symErr != nil || d.Symptoms == nil {
		d.Symptoms = []*SymptomLog{}
	}
	if bmiErr != nil || d.BMIHistory == nil {
		d.BMIHistory = []*BMIRecord{}
	}
	if latestErr != nil {
		d.LatestVitals = nil
	}
	if historyErr != nil || d.VitalsHistory == nil {
		d.VitalsHistory = []*Vitals{}
	}
	return &d, nil
}

func (c *Client) requireSession() error {
	switch c.State() {
	case StateClosed:
		return ErrClosed
	case StateAuthenticated:
		return nil
	default:
		return ErrNotSignedIn
	}
}

func (c *Client) LogSymptom(ctx context.Context, in SymptomInput) (*SymptomLog, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var out SymptomLog
	if err := c.do(ctx, http.MethodPost, "/api/v1/symptoms", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CalculateBMI computes a BMI without saving it.
func (c *Client) CalculateBMI(ctx context.Context, in BMIInput) (*BMIResult, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var out BMIResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/bmi/calculate", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecordBMI(ctx context.Context, in BMIInput) (*BMIRecord, *BMIResult, error) {
	if err := c.requireSession(); err != nil {
		return nil, nil, err
	}
	var out struct {
		Record *BMIRecord `json:"record"`
		Result *BMIResult `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/bmi", in, &out); err != nil {
		return nil, nil, err
	}
	return out.Record, out.Result, nil
}

func (c *Client) RecordVitals(ctx context.Context, v *Vitals) (*Vitals, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var out Vitals
	if err := c.do(ctx, http.MethodPost, "/api/v1/vitals", v, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
