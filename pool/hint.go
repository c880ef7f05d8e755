package pool

import (
	"fmt"
	"regexp"
	"strconv"
)

// Casa PARALLEL(8), PARALLEL (8), parallel( 8 )...
var parallelHintRe = regexp.MustCompile(`(?i)PARALLEL\s*\(\s*(\d+)\s*\)`)

// ParseParallelHint extrai o grau de paralelismo de um hint Oracle,
// ex: "/*+ PARALLEL(8) FULL(A) */" => 8. Hint vazio ou sem PARALLEL(n)
// devolve def.
func ParseParallelHint(hint string, def int) int {
	if hint == "" {
		return def
	}
	m := parallelHintRe.FindStringSubmatch(hint)
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// BuildParallelHint monta um hint Oracle com o grau dado.
func BuildParallelHint(parallel int, includeFull bool) string {
	if includeFull {
		return fmt.Sprintf("/*+ PARALLEL(%d) FULL(A) */", parallel)
	}
	return fmt.Sprintf("/*+ PARALLEL(%d) */", parallel)
}

// AdjustParallelHint troca o grau de um hint existente preservando os demais
// componentes (FULL, INDEX, ...). Hint sem PARALLEL(n) vira um hint novo.
func AdjustParallelHint(original string, parallel int) string {
	if original == "" || !parallelHintRe.MatchString(original) {
		return BuildParallelHint(parallel, true)
	}
	return parallelHintRe.ReplaceAllString(original, fmt.Sprintf("PARALLEL(%d)", parallel))
}
