package inventory

import (
	"context"
	"os/exec"
)

func platformSources() []Source {
	return []Source{
		SourceFunc{Label: SourceDpkg, Fn: listDpkg},
		SourceFunc{Label: SourceRPM, Fn: listRPM},
	}
}

func listDpkg(ctx context.Context) ([]SoftwareEntry, error) {
	out, err := exec.CommandContext(ctx, "dpkg-query", "-W", "-f="+dpkgFormat).Output()
	if err != nil {
		return nil, err
	}
	return parseDpkg(out)
}

func listRPM(ctx context.Context) ([]SoftwareEntry, error) {
	out, err := exec.CommandContext(ctx, "rpm", "-qa", "--queryformat", rpmFormat).Output()
	if err != nil {
		return nil, err
	}
	return parseRPM(out)
}
