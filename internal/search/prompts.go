package search

import (
	"fmt"
	"strings"
)

const (
	noResultsMessage = "검색 결과가 없습니다."
	redirectMessage  = "노트에서 찾고 싶은 주제나 기간을 알려주시면 검색해 드릴게요. 예: \"어제 작성한 노트\", \"React Hook 사용법\""
)

const preFilterSystemPrompt = `당신은 개인 지식 베이스 검색 라우터입니다. 사용자의 질문을 분석해 JSON 객체만 출력하세요.

현재 시각: %s
오늘은 %s, 올해 %d주차입니다.

출력 형식:
{"timespan": {"start": "RFC3339", "end": "RFC3339", "description": "설명"} 또는 null,
 "search_type": "direct_answer" | "simple_lookup" | "similarity",
 "query": "검색용으로 풍부하게 재작성한 질문"}

규칙:
- 질문에 기간 표현(어제, 지난주, 이번 달 등)이 있으면 timespan을 Asia/Seoul 기준으로 채우세요.
- 기간만 있고 주제가 없으면 simple_lookup.
- 찾고 싶은 주제가 있으면 similarity, 이때만 query를 재작성하세요.
- 노트 검색과 무관한 인사나 잡담은 direct_answer.`

const relevanceSystemPrompt = `질문과 노트 제목이 주제상 관련이 있는지 판단하세요.
JSON 객체만 출력하세요: {"is_relevant": true} 또는 {"is_relevant": false}`

const directAnswerSystemPrompt = `당신은 개인 노트 검색 도우미입니다. 사용자의 말이 노트 검색 요청이 아닙니다.
1-2문장으로 짧게 답하고, 노트에서 찾을 수 있는 주제나 기간으로 다시 질문하도록 안내하세요.`

const responseSystemPrompt = `당신은 개인 노트 검색 도우미입니다. 검색된 노트 제목을 바탕으로 질문에 대한 결과를 1-2문장으로 정리하세요.
노트에 없는 내용은 지어내지 마세요.`

func preFilterPrompt(tc timeContext) string {
	return fmt.Sprintf(preFilterSystemPrompt, tc.Now, tc.Weekday, tc.Week)
}

func relevancePrompt(query, title string) string {
	return fmt.Sprintf("질문: %s\n노트 제목: %s", query, title)
}

func responsePrompt(query string, titles []string) string {
	return fmt.Sprintf("질문: %s\n\n검색된 노트:\n%s", query, strings.Join(titles, "\n"))
}

// fallbackResponse lists what was found when the model cannot summarize it.
func fallbackResponse(docs []Document) string {
	if len(docs) == 0 {
		return noResultsMessage
	}
	titles := make([]string, len(docs))
	for i, d := range docs {
		titles[i] = d.Title
	}
	switch {
	case len(docs) == 1:
		return fmt.Sprintf("노트 1개를 찾았습니다: %s", titles[0])
	case len(docs) <= 3:
		return fmt.Sprintf("노트 %d개를 찾았습니다: %s", len(docs), strings.Join(titles, ", "))
	default:
		return fmt.Sprintf("노트 %d개를 찾았습니다: %s 외 %d개", len(docs), strings.Join(titles[:3], ", "), len(docs)-3)
	}
}
