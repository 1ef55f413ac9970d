package report

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/digitme/digit/core/school"
)

// classReports creates the class and module reports of class in both formats and returns the files written.
// Failed reports are recorded in failed by their base name.
func (svc *Service) classReports(ctx context.Context, class school.Class, lastMonth time.Time, failed *failures) *teacherReports {
	files := &teacherReports{}
	root := svc.conf.MediaRoot

	classBase := reportBase(root, lastMonth, class.Name, "class")
	if rows, err := svc.participantRows(ctx, class, lastMonth); err != nil {
		svc.log(ctx, fmt.Sprintf("Failed to create report: %s.\n%v", classBase, err), false)
		failed.addReport(classBase)
	} else {
		svc.write(ctx, classBase, class.Name+"_class_report", ClassHeadings, rows, files, false, failed)
	}

	moduleBase := reportBase(root, lastMonth, class.Name, "module")
	if rows, err := svc.moduleRows(ctx, class, lastMonth); err != nil {
		svc.log(ctx, fmt.Sprintf("Failed to create report: %s.\n%v", moduleBase, err), false)
		failed.addReport(moduleBase)
	} else {
		svc.write(ctx, moduleBase, class.Name+"_module_report", ModuleHeadings, rows, files, true, failed)
	}
	return files
}

func (svc *Service) participantRows(ctx context.Context, class school.Class, lastMonth time.Time) ([]row, error) {
	svc.log(ctx, fmt.Sprintf("Creating report: %s", class.Name+"_class_report"), true)
	participants, err := svc.repo.QueryParticipants(ctx, school.ParticipantFilter{ClassID: class.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying participants")
	}
	rows := make([]row, 0, len(participants))
	for _, p := range participants {
		r, err := ProcessParticipant(ctx, svc.repo, p, lastMonth)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	svc.log(ctx, fmt.Sprintf("Report created: %s", class.Name+"_class_report"), true)
	return rows, nil
}

func (svc *Service) moduleRows(ctx context.Context, class school.Class, lastMonth time.Time) ([]row, error) {
	svc.log(ctx, fmt.Sprintf("Creating report: %s", class.Name+"_module_report"), true)
	modules, err := svc.repo.QueryCourseModules(ctx, class.CourseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying course modules")
	}
	rows := make([]row, 0, len(modules))
	for _, m := range modules {
		r, err := ProcessModule(ctx, svc.repo, m, lastMonth)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	svc.log(ctx, fmt.Sprintf("Report created: %s", class.Name+"_module_report"), true)
	return rows, nil
}

// write saves rows as base.csv and base.xlsx, recording the saved files in files.
func (svc *Service) write(
	ctx context.Context, base, sheet string, headings []string, rows []row,
	files *teacherReports, module bool, failed *failures,
) {
	csvPath := base + ".csv"
	svc.log(ctx, fmt.Sprintf("Saving report: %s", csvPath), true)
	if err := writeCSV(csvPath, headings, rows); err != nil {
		svc.log(ctx, fmt.Sprintf("Failed to save report: %s.\n%v", csvPath, err), false)
		failed.addReport(base)
	} else {
		svc.log(ctx, fmt.Sprintf("Report saved: %s", csvPath), true)
		if module {
			files.csvModule = append(files.csvModule, csvPath)
		} else {
			files.csvClass = append(files.csvClass, csvPath)
		}
	}

	xlsxPath := base + ".xlsx"
	svc.log(ctx, fmt.Sprintf("Saving report: %s", xlsxPath), true)
	if err := writeXLSX(xlsxPath, sheet, headings, rows); err != nil {
		svc.log(ctx, fmt.Sprintf("Failed to save report: %s.\n%v", xlsxPath, err), false)
		failed.addReport(base)
	} else {
		svc.log(ctx, fmt.Sprintf("Report saved: %s", xlsxPath), true)
		if module {
			files.xlsxModule = append(files.xlsxModule, xlsxPath)
		} else {
			files.xlsxClass = append(files.xlsxClass, xlsxPath)
		}
	}
}
