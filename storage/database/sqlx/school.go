package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/digitme/digit/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

// learners

func (repo *schoolRepository) CreateLearner(ctx context.Context, l school.Learner) (school.Learner, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO learners
		(first_name, last_name, username, mobile, email, school_id, grade, is_active, promoted_cycle, date_joined)
		VALUES (:first_name, :last_name, :username, :mobile, :email, :school_id, :grade, :is_active, :promoted_cycle, :date_joined)`,
		l,
	)
	if err != nil {
		return school.Learner{}, errors.Wrap(err, "creating learner")
	}
	l.ID = id
	return l, nil
}

func (repo *schoolRepository) GetLearner(ctx context.Context, id int) (school.Learner, error) {
	var l school.Learner
	err := getByID(ctx, repo.db, &l, "learners", id, school.ErrLearnerNotFound)
	return l, err
}

func (repo *schoolRepository) QueryLearners(ctx context.Context, filter school.LearnerFilter) ([]school.Learner, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if len(filter.Grades) > 0 {
		grades := make([]string, 0, len(filter.Grades))
		for _, g := range filter.Grades {
			grades = append(grades, string(g))
		}
		w.add("grade IN (?)", grades)
	}
	if filter.SchoolID != 0 {
		w.add("school_id = ?", filter.SchoolID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	var learners []school.Learner
	err := selectWhere(ctx, repo.db, &learners, "SELECT * FROM learners", w, " ORDER BY id")
	return learners, errors.Wrap(err, "querying learners")
}

func (repo *schoolRepository) UpdateLearner(ctx context.Context, l school.Learner) (school.Learner, error) {
	err := update(ctx, repo.db, `UPDATE learners SET
		first_name = :first_name, last_name = :last_name, username = :username, mobile = :mobile, email = :email,
		school_id = :school_id, grade = :grade, is_active = :is_active, promoted_cycle = :promoted_cycle
		WHERE id = :id`,
		l, school.ErrLearnerNotFound,
	)
	return l, err
}

// organisations

func (repo *schoolRepository) CreateOrganisation(ctx context.Context, o school.Organisation) (school.Organisation, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO organisations (name, website, email) VALUES (:name, :website, :email)", o)
	if err != nil {
		return school.Organisation{}, errors.Wrap(err, "creating organisation")
	}
	o.ID = id
	return o, nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, s school.School) (school.School, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO schools (organisation_id, name, province) VALUES (:organisation_id, :name, :province)", s)
	if err != nil {
		return school.School{}, errors.Wrap(err, "creating school")
	}
	s.ID = id
	return s, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id int) (school.School, error) {
	var s school.School
	err := getByID(ctx, repo.db, &s, "schools", id, school.ErrSchoolNotFound)
	return s, err
}

// courses

func (repo *schoolRepository) CreateCourse(ctx context.Context, c school.Course) (school.Course, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO courses (name, description, is_active) VALUES (:name, :description, :is_active)", c)
	if err != nil {
		return school.Course{}, errors.Wrap(err, "creating course")
	}
	c.ID = id
	return c, nil
}

func (repo *schoolRepository) GetCourse(ctx context.Context, id int) (school.Course, error) {
	var c school.Course
	err := getByID(ctx, repo.db, &c, "courses", id, school.ErrCourseNotFound)
	return c, err
}

func (repo *schoolRepository) GetCourseByName(ctx context.Context, name string) (school.Course, error) {
	var c school.Course
	var w where
	w.add("name = ?", name)
	err := getWhere(ctx, repo.db, &c, "SELECT * FROM courses", w, school.ErrCourseNotFound)
	return c, err
}

func (repo *schoolRepository) QueryCourses(ctx context.Context) ([]school.Course, error) {
	var courses []school.Course
	err := repo.db.SelectContext(ctx, &courses, "SELECT * FROM courses ORDER BY id")
	return courses, errors.Wrap(err, "querying courses")
}

func (repo *schoolRepository) CreateModule(ctx context.Context, m school.Module) (school.Module, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO modules (name, description, is_active) VALUES (:name, :description, :is_active)", m)
	if err != nil {
		return school.Module{}, errors.Wrap(err, "creating module")
	}
	m.ID = id
	return m, nil
}

func (repo *schoolRepository) GetModule(ctx context.Context, id int) (school.Module, error) {
	var m school.Module
	err := getByID(ctx, repo.db, &m, "modules", id, school.ErrModuleNotFound)
	return m, err
}

func (repo *schoolRepository) LinkCourseModule(ctx context.Context, courseID, moduleID int) error {
	if _, err := repo.GetCourse(ctx, courseID); err != nil {
		return err
	}
	if _, err := repo.GetModule(ctx, moduleID); err != nil {
		return err
	}
	_, err := repo.db.ExecContext(ctx, repo.db.Rebind(
		"INSERT INTO course_modules (course_id, module_id) VALUES (?, ?) ON CONFLICT (course_id, module_id) DO NOTHING",
	), courseID, moduleID)
	return errors.Wrap(err, "linking course module")
}

func (repo *schoolRepository) QueryCourseModules(ctx context.Context, courseID int) ([]school.Module, error) {
	var modules []school.Module
	err := repo.db.SelectContext(ctx, &modules, repo.db.Rebind(`SELECT m.* FROM modules m
		JOIN course_modules cm ON cm.module_id = m.id
		WHERE cm.course_id = ? ORDER BY cm.id`), courseID)
	return modules, errors.Wrap(err, "querying course modules")
}

// classes

func (repo *schoolRepository) CreateClass(ctx context.Context, c school.Class) (school.Class, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO classes
		(course_id, name, description, province, start_date, end_date, is_active)
		VALUES (:course_id, :name, :description, :province, :start_date, :end_date, :is_active)`,
		c,
	)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "creating class")
	}
	c.ID = id
	return c, nil
}

func (repo *schoolRepository) GetClass(ctx context.Context, id int) (school.Class, error) {
	var c school.Class
	err := getByID(ctx, repo.db, &c, "classes", id, school.ErrClassNotFound)
	return c, err
}

func (repo *schoolRepository) GetClassByName(ctx context.Context, name string) (school.Class, error) {
	var c school.Class
	var w where
	w.add("name = ?", name)
	err := getWhere(ctx, repo.db, &c, "SELECT * FROM classes", w, school.ErrClassNotFound)
	return c, err
}

func (repo *schoolRepository) QueryClasses(ctx context.Context, filter school.ClassFilter) ([]school.Class, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if filter.CourseID != 0 {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	var classes []school.Class
	err := selectWhere(ctx, repo.db, &classes, "SELECT * FROM classes", w, " ORDER BY id")
	return classes, errors.Wrap(err, "querying classes")
}

func (repo *schoolRepository) UpdateClass(ctx context.Context, c school.Class) (school.Class, error) {
	err := update(ctx, repo.db, `UPDATE classes SET
		course_id = :course_id, name = :name, description = :description, province = :province,
		start_date = :start_date, end_date = :end_date, is_active = :is_active
		WHERE id = :id`,
		c, school.ErrClassNotFound,
	)
	return c, err
}

// participants

func (repo *schoolRepository) CreateParticipant(ctx context.Context, p school.Participant) (school.Participant, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO participants (learner_id, class_id, points, is_active, date_joined)
		VALUES (:learner_id, :class_id, :points, :is_active, :date_joined)`,
		p,
	)
	if err != nil {
		return school.Participant{}, errors.Wrap(err, "creating participant")
	}
	p.ID = id
	return p, nil
}

func (repo *schoolRepository) GetParticipant(ctx context.Context, id int) (school.Participant, error) {
	var p school.Participant
	err := getByID(ctx, repo.db, &p, "participants", id, school.ErrParticipantNotFound)
	return p, err
}

func (repo *schoolRepository) QueryParticipants(ctx context.Context, filter school.ParticipantFilter) ([]school.Participant, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if filter.LearnerID != 0 {
		w.add("learner_id = ?", filter.LearnerID)
	}
	if filter.ClassID != 0 {
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.CourseID != 0 {
		w.add("class_id IN (SELECT id FROM classes WHERE course_id = ?)", filter.CourseID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if !filter.JoinedFrom.IsZero() {
		w.add("date_joined >= ?", filter.JoinedFrom.UTC())
	}
	var participants []school.Participant
	err := selectWhere(ctx, repo.db, &participants, "SELECT * FROM participants", w, " ORDER BY id")
	return participants, errors.Wrap(err, "querying participants")
}

func (repo *schoolRepository) UpdateParticipant(ctx context.Context, p school.Participant) (school.Participant, error) {
	err := update(ctx, repo.db, `UPDATE participants SET
		learner_id = :learner_id, class_id = :class_id, points = :points, is_active = :is_active
		WHERE id = :id`,
		p, school.ErrParticipantNotFound,
	)
	return p, err
}

// content

func (repo *schoolRepository) CreateQuestion(ctx context.Context, q school.Question) (school.Question, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO questions (module_id, name, content, points, state, sort_order)
		VALUES (:module_id, :name, :content, :points, :state, :sort_order)`,
		q,
	)
	if err != nil {
		return school.Question{}, errors.Wrap(err, "creating question")
	}
	q.ID = id
	return q, nil
}

func (repo *schoolRepository) GetQuestion(ctx context.Context, id int) (school.Question, error) {
	var q school.Question
	err := getByID(ctx, repo.db, &q, "questions", id, school.ErrQuestionNotFound)
	return q, err
}

func (repo *schoolRepository) QueryQuestions(ctx context.Context, filter school.QuestionFilter) ([]school.Question, error) {
	var w where
	if filter.ModuleID != 0 {
		w.add("module_id = ?", filter.ModuleID)
	}
	if filter.State != 0 {
		w.add("state = ?", int(filter.State))
	}
	var questions []school.Question
	err := selectWhere(ctx, repo.db, &questions, "SELECT * FROM questions", w, " ORDER BY sort_order, id")
	return questions, errors.Wrap(err, "querying questions")
}

func (repo *schoolRepository) SetQuestionsState(ctx context.Context, state school.QuestionState, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In("UPDATE questions SET state = ? WHERE id IN (?)", int(state), ids)
	if err != nil {
		return 0, errors.Wrap(err, "expanding query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "setting questions state")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (repo *schoolRepository) CreateOption(ctx context.Context, o school.Option) (school.Option, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO options (question_id, name, content, correct, sort_order)
		VALUES (:question_id, :name, :content, :correct, :sort_order)`,
		o,
	)
	if err != nil {
		return school.Option{}, errors.Wrap(err, "creating option")
	}
	o.ID = id
	return o, nil
}

func (repo *schoolRepository) GetOption(ctx context.Context, id int) (school.Option, error) {
	var o school.Option
	err := getByID(ctx, repo.db, &o, "options", id, school.ErrOptionNotFound)
	return o, err
}

// answers

func (repo *schoolRepository) CreateAnswer(ctx context.Context, a school.Answer) (school.Answer, error) {
	a.AnsweredAt = a.AnsweredAt.UTC()
	id, err := insert(ctx, repo.db, `INSERT INTO answers (participant_id, question_id, option_id, correct, answered_at)
		VALUES (:participant_id, :question_id, :option_id, :correct, :answered_at)`,
		a,
	)
	if err != nil {
		return school.Answer{}, errors.Wrap(err, "creating answer")
	}
	a.ID = id
	return a, nil
}

func answerWhere(filter school.AnswerFilter) where {
	var w where
	if len(filter.ParticipantIDs) > 0 {
		w.add("a.participant_id IN (?)", filter.ParticipantIDs)
	}
	if filter.QuestionID != 0 {
		w.add("a.question_id = ?", filter.QuestionID)
	}
	if filter.ModuleID != 0 {
		w.add("a.question_id IN (SELECT id FROM questions WHERE module_id = ?)", filter.ModuleID)
	}
	if filter.Correct != nil {
		w.add("a.correct = ?", *filter.Correct)
	}
	if !filter.From.IsZero() {
		w.add("a.answered_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("a.answered_at < ?", filter.To.UTC())
	}
	return w
}

func (repo *schoolRepository) QueryAnswers(ctx context.Context, filter school.AnswerFilter) ([]school.Answer, error) {
	var answers []school.Answer
	err := selectWhere(ctx, repo.db, &answers, "SELECT a.* FROM answers a", answerWhere(filter), " ORDER BY a.id")
	return answers, errors.Wrap(err, "querying answers")
}

func (repo *schoolRepository) CountAnswers(ctx context.Context, filter school.AnswerFilter) (int, error) {
	n, err := count(ctx, repo.db, "SELECT COUNT(*) FROM answers a", answerWhere(filter))
	return n, errors.Wrap(err, "counting answers")
}

// points

func (repo *schoolRepository) CreatePointGrant(ctx context.Context, g school.PointGrant) (school.PointGrant, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO point_grants (participant_id, points, source, source_id, granted_at)
		VALUES (:participant_id, :points, :source, :source_id, :granted_at)`,
		g,
	)
	if err != nil {
		return school.PointGrant{}, errors.Wrap(err, "creating point grant")
	}
	g.ID = id
	return g, nil
}

func (repo *schoolRepository) SumPointGrants(ctx context.Context, participantID int) (int, error) {
	var w where
	w.add("participant_id = ?", participantID)
	n, err := count(ctx, repo.db, "SELECT COALESCE(SUM(points), 0) FROM point_grants", w)
	return n, errors.Wrap(err, "summing point grants")
}

// gamification

func (repo *schoolRepository) CreatePointBonus(ctx context.Context, b school.PointBonus) (school.PointBonus, error) {
	id, err := insert(ctx, repo.db, "INSERT INTO point_bonuses (name, value) VALUES (:name, :value)", b)
	if err != nil {
		return school.PointBonus{}, errors.Wrap(err, "creating point bonus")
	}
	b.ID = id
	return b, nil
}

func (repo *schoolRepository) GetPointBonus(ctx context.Context, id int) (school.PointBonus, error) {
	var b school.PointBonus
	err := getByID(ctx, repo.db, &b, "point_bonuses", id, school.ErrPointBonusNotFound)
	return b, err
}

func (repo *schoolRepository) CreateBadgeTemplate(ctx context.Context, b school.BadgeTemplate) (school.BadgeTemplate, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO badge_templates (name, description) VALUES (:name, :description)", b)
	if err != nil {
		return school.BadgeTemplate{}, errors.Wrap(err, "creating badge template")
	}
	b.ID = id
	return b, nil
}

func (repo *schoolRepository) CreateScenario(ctx context.Context, s school.Scenario) (school.Scenario, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO scenarios (name, event, course_id, module_id, point_id, badge_id)
		VALUES (:name, :event, :course_id, :module_id, :point_id, :badge_id)`,
		s,
	)
	if err != nil {
		return school.Scenario{}, errors.Wrap(err, "creating scenario")
	}
	s.ID = id
	return s, nil
}

func (repo *schoolRepository) GetScenario(ctx context.Context, id int) (school.Scenario, error) {
	var s school.Scenario
	err := getByID(ctx, repo.db, &s, "scenarios", id, school.ErrScenarioNotFound)
	return s, err
}

func (repo *schoolRepository) QueryScenarios(ctx context.Context, filter school.ScenarioFilter) ([]school.Scenario, error) {
	var w where
	if filter.Event != "" {
		w.add("event = ?", filter.Event)
	}
	if filter.CourseID != 0 {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.ModuleID.Valid {
		w.add("module_id = ?", filter.ModuleID.Int)
	} else {
		w.add("module_id IS NULL")
	}
	var scenarios []school.Scenario
	err := selectWhere(ctx, repo.db, &scenarios, "SELECT * FROM scenarios", w, " ORDER BY id")
	return scenarios, errors.Wrap(err, "querying scenarios")
}

func (repo *schoolRepository) GetParticipantBadge(ctx context.Context, participantID, badgeID int) (school.ParticipantBadge, error) {
	var b school.ParticipantBadge
	var w where
	w.add("participant_id = ?", participantID)
	w.add("badge_id = ?", badgeID)
	err := getWhere(ctx, repo.db, &b, "SELECT * FROM participant_badges", w, school.ErrBadgeNotFound)
	return b, err
}

func (repo *schoolRepository) SaveParticipantBadge(ctx context.Context, b school.ParticipantBadge) (school.ParticipantBadge, error) {
	if b.ID != 0 {
		err := update(ctx, repo.db, `UPDATE participant_badges SET
			scenario_id = :scenario_id, award_count = :award_count, award_date = :award_date
			WHERE id = :id`,
			b, school.ErrBadgeNotFound,
		)
		return b, err
	}
	id, err := insert(ctx, repo.db, `INSERT INTO participant_badges
		(participant_id, badge_id, scenario_id, award_count, award_date)
		VALUES (:participant_id, :badge_id, :scenario_id, :award_count, :award_date)`,
		b,
	)
	if err != nil {
		return school.ParticipantBadge{}, errors.Wrap(err, "creating participant badge")
	}
	b.ID = id
	return b, nil
}

func (repo *schoolRepository) CreateGoldenEgg(ctx context.Context, e school.GoldenEgg) (school.GoldenEgg, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO golden_eggs (course_id, class_id, is_active, point_value, airtime, scenario_id)
		VALUES (:course_id, :class_id, :is_active, :point_value, :airtime, :scenario_id)`,
		e,
	)
	if err != nil {
		return school.GoldenEgg{}, errors.Wrap(err, "creating golden egg")
	}
	e.ID = id
	return e, nil
}

func (repo *schoolRepository) QueryGoldenEggs(ctx context.Context, filter school.GoldenEggFilter) ([]school.GoldenEgg, error) {
	var w where
	if filter.CourseID != 0 {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.ClassID.Valid {
		w.add("class_id = ?", filter.ClassID.Int)
	} else {
		w.add("class_id IS NULL")
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	var eggs []school.GoldenEgg
	err := selectWhere(ctx, repo.db, &eggs, "SELECT * FROM golden_eggs", w, " ORDER BY id")
	return eggs, errors.Wrap(err, "querying golden eggs")
}

func (repo *schoolRepository) CreateGoldenEggRewardLog(ctx context.Context, l school.GoldenEggRewardLog) (school.GoldenEggRewardLog, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO golden_egg_reward_logs (participant_id, points, airtime, scenario_id, award_date)
		VALUES (:participant_id, :points, :airtime, :scenario_id, :award_date)`,
		l,
	)
	if err != nil {
		return school.GoldenEggRewardLog{}, errors.Wrap(err, "creating golden egg reward log")
	}
	l.ID = id
	return l, nil
}

// teachers

func (repo *schoolRepository) CreateTeacherClass(ctx context.Context, tc school.TeacherClass) (school.TeacherClass, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO teacher_classes (teacher_id, class_id) VALUES (:teacher_id, :class_id)", tc)
	if err != nil {
		return school.TeacherClass{}, errors.Wrap(err, "creating teacher class")
	}
	tc.ID = id
	return tc, nil
}

func (repo *schoolRepository) QueryTeacherClasses(ctx context.Context, filter school.TeacherClassFilter) ([]school.TeacherClass, error) {
	var w where
	if filter.TeacherID != 0 {
		w.add("teacher_id = ?", filter.TeacherID)
	}
	if len(filter.ClassIDs) > 0 {
		w.add("class_id IN (?)", filter.ClassIDs)
	}
	var links []school.TeacherClass
	err := selectWhere(ctx, repo.db, &links, "SELECT * FROM teacher_classes", w, " ORDER BY id")
	return links, errors.Wrap(err, "querying teacher classes")
}

// settings

func (repo *schoolRepository) GetSetting(ctx context.Context, key string) (school.Setting, error) {
	var s school.Setting
	var w where
	w.add("key = ?", key)
	err := getWhere(ctx, repo.db, &s, "SELECT * FROM settings", w, school.ErrSettingNotFound)
	return s, err
}

func (repo *schoolRepository) SaveSetting(ctx context.Context, s school.Setting) error {
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO settings (key, value) VALUES (:key, :value)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, s)
	return errors.Wrap(err, "saving setting")
}

// task logs

func (repo *schoolRepository) CreateTaskLog(ctx context.Context, l school.TaskLog) (school.TaskLog, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO task_logs (task, success, message, logged_at)
		VALUES (:task, :success, :message, :logged_at)`,
		l,
	)
	if err != nil {
		return school.TaskLog{}, errors.Wrap(err, "creating task log")
	}
	l.ID = id
	return l, nil
}

func (repo *schoolRepository) QueryTaskLogs(ctx context.Context, task string) ([]school.TaskLog, error) {
	var w where
	if task != "" {
		w.add("task = ?", task)
	}
	var logs []school.TaskLog
	err := selectWhere(ctx, repo.db, &logs, "SELECT * FROM task_logs", w, " ORDER BY id")
	return logs, errors.Wrap(err, "querying task logs")
}
