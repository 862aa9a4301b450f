package domain

// LessonType content kind of a lesson
type LessonType string

// lesson content kinds
const (
	LessonVideo LessonType = "video"
	LessonText  LessonType = "text"
)

// Resource downloadable attachment of a lesson
type Resource struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Lesson leaf of the catalog, content is either a video URL or rich text
type Lesson struct {
	ID               string            `json:"id"`
	ModuleID         string            `json:"moduleId"`
	Title            string            `json:"title"`
	Order            int               `json:"order"`
	Type             LessonType        `json:"type"`
	IsCompleted      bool              `json:"isCompleted"`
	VideoURL         string            `json:"videoUrl,omitempty"`
	Content          string            `json:"content,omitempty"`
	Resources        []*Resource       `json:"resources,omitempty"`
	LessonProgresses []*LessonProgress `json:"lessonProgresses,omitempty"`
}

// Module ordered group of lessons
type Module struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Order   int       `json:"order"`
	Lessons []*Lesson `json:"lessons"`
}

// Course catalog summary
type Course struct {
	ID          string `json:"id"`
	Matricula   string `json:"matricula"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Progress    int    `json:"progress"`
}

// CourseDetails course with its module tree
type CourseDetails struct {
	ID          string    `json:"id"`
	Matricula   string    `json:"matricula"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Progress    int       `json:"progress"`
	Modules     []*Module `json:"modules"`
}

// Lessons flattens the module tree in module order
func (cd *CourseDetails) Lessons() []*Lesson {
	var lessons []*Lesson
	for _, m := range cd.Modules {
		lessons = append(lessons, m.Lessons...)
	}
	return lessons
}

// Enrollment links a user to a course
type Enrollment struct {
	ID       string         `json:"id"`
	UserID   string         `json:"userId"`
	CourseID string         `json:"courseId"`
	Course   *CourseDetails `json:"course"`
}
