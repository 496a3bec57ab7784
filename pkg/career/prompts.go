package career

import (
	"fmt"
	"strings"

	"github.com/wordflowlab/careerpilot/pkg/vector"
)

// CourseListHeader 课程推荐列表的标题行
const CourseListHeader = "Here is the list of TOP 3 Udemy Courses that would level up your skills:"

// MaxCourses 推荐列表最多包含的课程数
const MaxCourses = 3

// SummaryPrompt 生成简历摘要指令。path 非空时告知模型 parse_file 可读取的文件。
func SummaryPrompt(path, content string) string {
	var file string
	if path != "" {
		file = fmt.Sprintf("\nThe uploaded file is available to the parse_file tool at: %s\n", path)
	}
	return fmt.Sprintf(`Provide a comprehensive summary of the following document fragments:

%s
%s
Summary should be divided into 3 sections:
1. Level (Junior/Middle/Senior/Architect/etc.)
2. Developer Role (Frontend, Backend, Full Stack, Mobile, Designer, PM, etc.)
3. Skillset (java, .net, html, css, angular, react, flutter, etc.)`, content, file)
}

// CoursePrompt 生成课程推荐指令
func CoursePrompt(input string) string {
	return fmt.Sprintf(`Based on the following input: %q, query the course store for the top 3 relevant Udemy courses. Then, provide a list of these courses with their titles and URLs in the following format:

%s
1. [Course Title] - [Course URL]
2. [Course Title] - [Course URL]
3. [Course Title] - [Course URL]

Make sure to include only the most relevant courses based on the input.`, input, CourseListHeader)
}

// FormatCourseList 把检索结果渲染成编号列表, 最多 MaxCourses 条。
// 没有标题的命中使用记录 ID, 没有 URL 时只输出标题。
func FormatCourseList(hits []vector.Hit) string {
	if len(hits) == 0 {
		return "No relevant courses were found for this profile."
	}
	if len(hits) > MaxCourses {
		hits = hits[:MaxCourses]
	}

	var b strings.Builder
	b.WriteString(CourseListHeader)
	for i, h := range hits {
		title, url := courseFields(h)
		if title == "" {
			title = h.ID
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, title)
		if url != "" {
			b.WriteString(" - ")
			b.WriteString(url)
		}
	}
	return b.String()
}

var (
	titleKeys = []string{"title", "course_title", "course_name", "name"}
	urlKeys   = []string{"url", "course_url", "link"}
)

// courseFields 优先读取元数据字段, 其次解析 "key: value" 形式的原文行
func courseFields(h vector.Hit) (title, url string) {
	title = metaString(h.Metadata, titleKeys)
	url = metaString(h.Metadata, urlKeys)
	if title != "" && url != "" {
		return title, url
	}

	lines := textFields(h.Text())
	if title == "" {
		title = firstField(lines, titleKeys)
	}
	if url == "" {
		url = firstField(lines, urlKeys)
	}
	return title, url
}

func metaString(meta map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s, ok := meta[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func textFields(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if _, seen := out[k]; !seen && v != "" {
			out[k] = v
		}
	}
	return out
}

func firstField(fields map[string]string, keys []string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v
		}
	}
	return ""
}
