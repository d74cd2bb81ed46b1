package models

// Weekday bucket keys used to group tasks for display.
// UnknownDate quarantines records whose dates could not be resolved.
const (
	Monday      = "monday"
	Tuesday     = "tuesday"
	Wednesday   = "wednesday"
	Thursday    = "thursday"
	Friday      = "friday"
	Weekend     = "weekend"
	UnknownDate = "unknown_date"
)

// WeekdayBuckets lists every bucket in display order.
var WeekdayBuckets = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Weekend, UnknownDate}

// Sentinel and display labels carried over from the bitable source.
const (
	UnknownAssignee = "未知负责人"
	UnknownPriority = "未知优先级"

	StatusInReview = "审批中"
	StatusApproved = "已通过"

	DisplayInProgress = "进行中"
	DisplayEnded      = "已结束"
)

// RawRecord is one row fetched from the bitable API: a stable record
// identifier plus an untyped field-name → value mapping. Consumed once per
// sync cycle and optionally archived verbatim.
type RawRecord struct {
	RecordID         string         `json:"record_id"`
	Fields           map[string]any `json:"fields"`
	CreatedTime      int64          `json:"created_time,omitempty"`
	LastModifiedTime int64          `json:"last_modified_time,omitempty"`
}

// FieldMapping names the bitable columns the normalizer reads. The defaults
// match the production dispatch table.
type FieldMapping struct {
	CustomerName      string
	TaskContent       string
	Assignee          string
	Priority          string
	ApplicationStatus string
	StartDate         string
	EndDate           string
}

// DefaultFieldMapping returns the production column names.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		CustomerName:      "客户公司名称",
		TaskContent:       "工作内容",
		Assignee:          "售后工程师",
		Priority:          "优先级",
		ApplicationStatus: "申请状态",
		StartDate:         "服务开始时间",
		EndDate:           "服务结束时间",
	}
}

// Task is one day-bucketed task instance derived from a bitable record.
// A record spanning N calendar days yields N Task values that differ only in
// Date and Weekday. These JSON field names are the wire contract consumed by
// the frontend and by downstream systems; do not rename them.
type Task struct {
	RecordID          string `json:"record_id"`
	TaskName          string `json:"task_name"`
	Assignee          string `json:"assignee"`
	Status            string `json:"status"`
	Priority          string `json:"priority"`
	ApplicationStatus string `json:"application_status"`
	Date              string `json:"date"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	Weekday           string `json:"weekday"`
}

// FieldValue looks up a task attribute by its wire name. The second return
// is false for names outside the wire contract, which filter conditions
// treat as a null operand.
func (t Task) FieldValue(name string) (any, bool) {
	switch name {
	case "record_id":
		return t.RecordID, true
	case "task_name":
		return t.TaskName, true
	case "assignee":
		return t.Assignee, true
	case "status":
		return t.Status, true
	case "priority":
		return t.Priority, true
	case "application_status":
		return t.ApplicationStatus, true
	case "date":
		return t.Date, true
	case "start_date":
		return t.StartDate, true
	case "end_date":
		return t.EndDate, true
	case "weekday":
		return t.Weekday, true
	default:
		return nil, false
	}
}

// TaskGroups buckets tasks by weekday key.
type TaskGroups map[string][]Task

// NewTaskGroups returns groups with every bucket present (possibly empty),
// so JSON responses always carry all seven keys.
func NewTaskGroups() TaskGroups {
	g := make(TaskGroups, len(WeekdayBuckets))
	for _, day := range WeekdayBuckets {
		g[day] = []Task{}
	}
	return g
}

// Add appends a task to its weekday bucket. Tasks carrying an unrecognized
// weekday are quarantined under unknown_date rather than dropped.
func (g TaskGroups) Add(task Task) {
	if _, ok := g[task.Weekday]; ok {
		g[task.Weekday] = append(g[task.Weekday], task)
		return
	}
	g[UnknownDate] = append(g[UnknownDate], task)
}

// Flatten returns all tasks in display order (monday..friday, weekend,
// unknown_date), preserving insertion order within each bucket.
func (g TaskGroups) Flatten() []Task {
	var out []Task
	for _, day := range WeekdayBuckets {
		out = append(out, g[day]...)
	}
	return out
}

// Total counts tasks across all buckets.
func (g TaskGroups) Total() int {
	n := 0
	for _, tasks := range g {
		n += len(tasks)
	}
	return n
}

// TaskListResponse is the flat list shape served to other backend systems.
type TaskListResponse struct {
	Total int    `json:"total"`
	Tasks []Task `json:"tasks"`
}

// EngineerStats aggregates one assignee's workload for a date range.
type EngineerStats struct {
	Engineer   string `json:"engineer"`
	TotalTasks int    `json:"total_tasks"`
	VeryUrgent int    `json:"very_urgent"`
	Urgent     int    `json:"urgent"`
	Important  int    `json:"important"`
}

// TaskStats is the response of the stats endpoint.
type TaskStats struct {
	DateRange  map[string]string `json:"date_range"`
	ByEngineer []EngineerStats   `json:"by_engineer"`
	ByPriority map[string]int    `json:"by_priority"`
}

// Priority labels counted by the stats endpoint.
const (
	PriorityVeryUrgent = "非常紧急"
	PriorityUrgent     = "紧急"
	PriorityImportant  = "重要"
)
