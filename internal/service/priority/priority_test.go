package priority

import (
	"math"
	"testing"
	"time"
)

func TestScoreNoHistoryUsesDefaults(t *testing.T) {
	r := NewRanker(time.Hour, nil)

	// No attempts and no configured base: 0.7*0.5 + 0.3*0.5.
	if got := r.Score("basketball_nba"); math.Abs(got-0.5) > 0.0001 {
		t.Fatalf("score = %f, want 0.5", got)
	}
}

func TestScoreConfiguredBase(t *testing.T) {
	r := NewRanker(time.Hour, map[string]float64{"soccer_epl": 0.9})

	want := 0.7*0.5 + 0.3*0.9
	if got := r.Score("soccer_epl"); math.Abs(got-want) > 0.0001 {
		t.Fatalf("score = %f, want %f", got, want)
	}
}

func TestBaseClamped(t *testing.T) {
	r := NewRanker(time.Hour, map[string]float64{"a": 1.5, "b": -0.2})

	if got := r.Score("a"); math.Abs(got-(0.7*0.5+0.3*1.0)) > 0.0001 {
		t.Fatalf("score(a) = %f, base should clamp to 1", got)
	}
	if got := r.Score("b"); math.Abs(got-0.7*0.5) > 0.0001 {
		t.Fatalf("score(b) = %f, base should clamp to 0", got)
	}
}

func TestSuccessRateBlending(t *testing.T) {
	r := NewRanker(time.Hour, map[string]float64{"a": 0.4})

	r.Record("a", true)
	r.Record("a", true)
	r.Record("a", true)
	r.Record("a", false)

	// 3 of 4 succeeded: 0.7*0.75 + 0.3*0.4.
	want := 0.7*0.75 + 0.3*0.4
	if got := r.Score("a"); math.Abs(got-want) > 0.0001 {
		t.Fatalf("score = %f, want %f", got, want)
	}
}

func TestFailuresSinkBelowUntried(t *testing.T) {
	r := NewRanker(time.Hour, nil)

	r.Record("flaky", false)
	r.Record("flaky", false)

	ranked := r.Rank([]string{"flaky", "fresh"})
	if ranked[0].SportKey != "fresh" {
		t.Fatalf("expected untried sport first, got %s", ranked[0].SportKey)
	}
	if ranked[1].SuccessRate != 0 {
		t.Errorf("success rate = %f, want 0", ranked[1].SuccessRate)
	}
}

func TestRankTiesKeepInputOrder(t *testing.T) {
	r := NewRanker(time.Hour, nil)

	ranked := r.Rank([]string{"c", "a", "b"})
	if ranked[0].SportKey != "c" || ranked[1].SportKey != "a" || ranked[2].SportKey != "b" {
		t.Fatalf("tie order not preserved: %+v", ranked)
	}
}

func TestSelectTopN(t *testing.T) {
	r := NewRanker(time.Hour, map[string]float64{"low": 0.1})
	r.Record("hot", true)
	r.Record("hot", true)

	top := r.SelectTopN([]string{"low", "mid", "hot"}, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(top))
	}
	if top[0] != "hot" {
		t.Errorf("top[0] = %s, want hot", top[0])
	}
	if top[1] != "mid" {
		t.Errorf("top[1] = %s, want mid", top[1])
	}

	all := r.SelectTopN([]string{"low", "hot"}, 10)
	if len(all) != 2 {
		t.Fatalf("n beyond candidates should return all, got %d", len(all))
	}
}

func TestAttemptsExpireWithWindow(t *testing.T) {
	r := NewRanker(50*time.Millisecond, map[string]float64{"a": 0.4})
	r.Record("a", false)
	r.Record("a", false)

	time.Sleep(80 * time.Millisecond)

	// All attempts aged out, the rate falls back to the default.
	want := 0.7*0.5 + 0.3*0.4
	if got := r.Score("a"); math.Abs(got-want) > 0.0001 {
		t.Fatalf("score = %f, want %f", got, want)
	}
}
