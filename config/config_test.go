package config

import (
	"testing"

	. "github.com/glycerine/goconvey/convey"
)

func TestParseAppliesDefaults(t *testing.T) {
	Convey("an empty config falls back to spec defaults", t, func() {
		cfg, err := Parse([]byte(`{}`))
		So(err, ShouldBeNil)
		So(cfg.PFCPauseThreshold, ShouldEqual, DefaultPauseThreshold)
		So(cfg.PFCResumeThreshold, ShouldEqual, DefaultResumeThreshold)
		So(cfg.SocketCacheLimit, ShouldEqual, DefaultSocketCacheLimit)
		So(cfg.MTUSize, ShouldEqual, DefaultMTUSize)
		So(cfg.CacheLimitFromMTU(), ShouldEqual, DefaultMTUSize*100)
	})

	Convey("explicit fields override the defaults", t, func() {
		cfg, err := Parse([]byte(`{"pfc_pause_threshold": 0.8, "mtu_size": 9000}`))
		So(err, ShouldBeNil)
		So(cfg.PFCPauseThreshold, ShouldEqual, 0.8)
		So(cfg.MTUSize, ShouldEqual, 9000)
		So(cfg.PFCResumeThreshold, ShouldEqual, DefaultResumeThreshold)
	})

	Convey("an inverted threshold pair is rejected", t, func() {
		_, err := Parse([]byte(`{"pfc_pause_threshold": 0.3, "pfc_resume_threshold": 0.5}`))
		So(err, ShouldNotBeNil)
	})
}
