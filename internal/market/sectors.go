package market

import (
	"strings"

	"github.com/wda-labs/newswatch/internal/model"
)

// sectorTickers maps an affected sector to the listed names tracked for it.
var sectorTickers = map[string][]string{
	"보험":     {"삼성생명", "한화생명", "동양생명"},
	"제약/바이오": {"삼성바이오로직스", "셀트리온", "유한양행"},
	"의료기기":   {"오스템임플란트", "루트로닉", "아이센스"},
	"상조":     {"프리드라이프", "보람상조"},
	"헬스케어IT": {"유비케어", "케어랩스", "라이프시맨틱스"},
}

// sectorKeywords drives the rule-based fallback: a keyword hit in the
// title or summary attributes the article to that sector.
var sectorKeywords = map[string][]string{
	"보험":     {"보험", "연금", "insurance"},
	"제약/바이오": {"제약", "신약", "임상", "바이오", "pharma"},
	"의료기기":   {"의료기기", "진단", "디바이스"},
	"상조":     {"상조", "장례", "장묘", "funeral"},
	"헬스케어IT": {"원격의료", "디지털 헬스", "헬스케어", "의료 데이터"},
}

// sectorOrder fixes the evaluation order so results are deterministic.
var sectorOrder = []string{"보험", "제약/바이오", "의료기기", "상조", "헬스케어IT"}

// Sectors lists every tracked sector.
func Sectors() []string {
	out := make([]string, len(sectorOrder))
	copy(out, sectorOrder)
	return out
}

// TickersFor returns the tracked names for the given sectors, deduplicated
// in sector order.
func TickersFor(sectors []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sectors {
		for _, tk := range sectorTickers[s] {
			if _, ok := seen[tk]; ok {
				continue
			}
			seen[tk] = struct{}{}
			out = append(out, tk)
		}
	}
	return out
}

// RuleBasedImpact assesses an article with keyword rules only. Used when
// the provider is unavailable or skipped an article.
func RuleBasedImpact(a model.Article) model.MarketImpact {
	text := strings.ToLower(a.Title + " " + a.Summary)
	if a.Analysis != nil {
		text += " " + strings.ToLower(a.Analysis.TitleKo+" "+a.Analysis.Summary)
	}

	var sectors []string
	for _, sector := range sectorOrder {
		for _, w := range sectorKeywords[sector] {
			if strings.Contains(text, strings.ToLower(w)) {
				sectors = append(sectors, sector)
				break
			}
		}
	}

	impact := model.ImpactNone
	switch {
	case len(sectors) >= 2:
		impact = model.ImpactMedium
	case len(sectors) == 1:
		impact = model.ImpactLow
	}

	return model.MarketImpact{
		Impact:    impact,
		Sectors:   sectors,
		Tickers:   TickersFor(sectors),
		Reason:    "키워드 규칙 기반 평가",
		RuleBased: true,
	}
}
