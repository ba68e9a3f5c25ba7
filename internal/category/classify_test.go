package category

import (
	"testing"

	"newsly/internal/core"
)

func TestClassifyKoreanIT(t *testing.T) {
	got := Classify("반도체 수출 사상 최대", "인공지능 수요가 반도체 수출을 끌어올렸다", []string{"반도체"})
	if got != core.CategoryIT {
		t.Errorf("Expected it, got %q", got)
	}
}

func TestClassifyEconomy(t *testing.T) {
	got := Classify("코스피 급등", "금리 인하 기대에 증시가 올랐다", nil)
	if got != core.CategoryEconomy {
		t.Errorf("Expected economy, got %q", got)
	}
}

func TestClassifyEnglishSports(t *testing.T) {
	got := Classify("League final tonight", "The soccer league concludes with the final match", nil)
	if got != core.CategorySports {
		t.Errorf("Expected sports, got %q", got)
	}
}

func TestClassifyNoHitsIsGeneral(t *testing.T) {
	got := Classify("오늘의 날씨", "맑고 포근한 하루가 되겠다", nil)
	if got != core.CategoryGeneral {
		t.Errorf("Expected general for no hits, got %q", got)
	}
}

func TestClassifyTitleOutweighsSummary(t *testing.T) {
	// One title hit for sports (2 points) against one summary hit for
	// culture (1 point).
	got := Classify("야구 개막", "영화 같은 역전극이 펼쳐졌다", nil)
	if got != core.CategorySports {
		t.Errorf("Expected the title hit to win, got %q", got)
	}
}
