package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/user"
)

var errGrpNotFoundInCtx = errors.New("group object not found in echo.Context")

type groupApi struct {
	svc      *group.Service
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerGroupAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *group.Service,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := groupApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	ag := g.Group("", jwt)
	ag.GET("/subjects", api.querySubjects)

	gg := ag.Group("/groups")
	gg.GET("", api.query)
	gg.POST("", api.create)

	// detail endpoints
	dg := gg.Group("/:id", groupContextMiddleware(svc, userSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.POST("/join", api.join)
	dg.POST("/leave", api.leave)
	dg.GET("/members", api.queryMembers)
	dg.PUT("/members/:mid/role", api.changeMemberRole)
	dg.DELETE("/members/:mid", api.removeMember)
	dg.GET("/materials", api.queryMaterials)
	dg.POST("/materials", api.addMaterial)
	dg.GET("/comments", api.queryComments)
	dg.POST("/comments", api.addComment)
	dg.PUT("/comments/:cid", api.editComment)
	dg.DELETE("/comments/:cid", api.deleteComment)

	mg := ag.Group("/materials")
	mg.PUT("/:id", api.updateMaterial)
	mg.DELETE("/:id", api.deleteMaterial)
}

// Handlers

func (api *groupApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.QuerySubjects()
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []group.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *groupApi) query(ctx echo.Context) error {
	filter := new(group.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []group.Group{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	groups, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	grp, err := api.svc.Create(data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

// update is restricted to the group's admins and site admins.
func (api *groupApi) update(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mbr, isMember := getContextMembership(ctx)
	if !(ctxUsr.IsAdmin() || (isMember && mbr.IsAdmin())) {
		return errHttpForbidden
	}

	var data group.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err = api.svc.Update(grp.ID, data)
	if err != nil {
		return trapGroupErr(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) join(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	mbr, err := api.svc.Join(ctxUsr.ID, grp.ID)
	if err != nil {
		return trapGroupErr(err, "joining group")
	}
	return ctx.JSON(http.StatusCreated, mbr)
}

func (api *groupApi) leave(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Leave(ctxUsr.ID, grp.ID); err != nil {
		return trapGroupErr(err, "leaving group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) queryMembers(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	if err := requireMember(ctx, api.userSvc); err != nil {
		return err
	}

	members, err := api.svc.QueryMemberships(grp.ID)
	if err != nil {
		return errors.Wrap(err, "querying memberships")
	}
	if members == nil {
		members = []group.Membership{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *groupApi) changeMemberRole(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mbr, isMember := getContextMembership(ctx)
	if !(ctxUsr.IsAdmin() || (isMember && mbr.IsAdmin())) {
		return errHttpForbidden
	}

	mid, err := strconv.Atoi(ctx.Param("mid"))
	if err != nil {
		return errHttpNotFound
	}

	var data MemberRoleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MemberRoleRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	target, err := api.svc.ChangeMemberRole(grp.ID, mid, data.Role)
	if err != nil {
		return trapGroupErr(err, "changing member role")
	}
	return ctx.JSON(http.StatusOK, target)
}

// removeMember kicks a member out of the group. Group and site admins may
// remove anyone but the last admin; moderators may only remove plain members.
func (api *groupApi) removeMember(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	mid, err := strconv.Atoi(ctx.Param("mid"))
	if err != nil {
		return errHttpNotFound
	}
	target, err := api.svc.GetMembershipByID(mid)
	if err != nil {
		return trapGroupErr(err, "finding membership by ID")
	}
	if target.GroupID != grp.ID {
		return errHttpNotFound
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mbr, isMember := getContextMembership(ctx)
	allowed := ctxUsr.IsAdmin() ||
		(isMember && mbr.IsAdmin()) ||
		(isMember && mbr.IsModerator() && target.Role == group.RoleMember)
	if !allowed {
		return errHttpForbidden
	}

	if err := api.svc.RemoveMember(grp.ID, mid); err != nil {
		return trapGroupErr(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) queryMaterials(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	if err := requireMember(ctx, api.userSvc); err != nil {
		return err
	}

	materials, err := api.svc.QueryMaterials(grp.ID)
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	if materials == nil {
		materials = []group.Material{}
	}
	return ctx.JSON(http.StatusOK, materials)
}

func (api *groupApi) addMaterial(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	if err := requireMember(ctx, api.userSvc); err != nil {
		return err
	}

	var data group.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	mat, err := api.svc.AddMaterial(grp.ID, ctxUsr.ID, data)
	if err != nil {
		return trapGroupErr(err, "adding material")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

// updateMaterial allows the uploader and the group's admins/moderators to edit.
func (api *groupApi) updateMaterial(ctx echo.Context) error {
	mat, ctxUsr, err := api.resolveMaterial(ctx)
	if err != nil {
		return err
	}
	if err := api.canManageMaterial(mat, ctxUsr); err != nil {
		return err
	}

	var data group.UpdateMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mat, err = api.svc.UpdateMaterial(mat.ID, data)
	if err != nil {
		return trapGroupErr(err, "updating material")
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *groupApi) deleteMaterial(ctx echo.Context) error {
	mat, ctxUsr, err := api.resolveMaterial(ctx)
	if err != nil {
		return err
	}
	if err := api.canManageMaterial(mat, ctxUsr); err != nil {
		return err
	}

	if err := api.svc.DeleteMaterial(mat.ID); err != nil {
		return trapGroupErr(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) queryComments(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	if err := requireMember(ctx, api.userSvc); err != nil {
		return err
	}

	comments, err := api.svc.QueryComments(grp.ID)
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	if comments == nil {
		comments = []group.Comment{}
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *groupApi) addComment(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	if err := requireMember(ctx, api.userSvc); err != nil {
		return err
	}

	var data group.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cmt, err := api.svc.AddComment(grp.ID, ctxUsr.ID, data)
	if err != nil {
		return trapGroupErr(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, cmt)
}

// editComment is author-only; the service marks the comment edited.
func (api *groupApi) editComment(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	cmt, err := api.resolveComment(ctx, grp)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if cmt.AuthorID != ctxUsr.ID {
		return errHttpForbidden
	}

	var data group.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	data.ParentID = nil // replies cannot be re-parented
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cmt, err = api.svc.EditComment(cmt.ID, data.Content)
	if err != nil {
		return trapGroupErr(err, "editing comment")
	}
	return ctx.JSON(http.StatusOK, cmt)
}

// deleteComment allows the author and the group's admins/moderators.
func (api *groupApi) deleteComment(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	cmt, err := api.resolveComment(ctx, grp)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mbr, isMember := getContextMembership(ctx)
	allowed := cmt.AuthorID == ctxUsr.ID ||
		ctxUsr.IsAdmin() ||
		(isMember && (mbr.IsAdmin() || mbr.IsModerator()))
	if !allowed {
		return errHttpForbidden
	}

	if err := api.svc.DeleteComment(cmt.ID); err != nil {
		return trapGroupErr(err, "deleting comment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Helpers

// groupContextMiddleware resolves the `:id` group into the context, along
// with the caller's membership when they have one.
func groupContextMiddleware(svc *group.Service, userSvc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := strconv.Atoi(ctx.Param("id"))
			if err != nil {
				return errHttpNotFound
			}
			grp, err := svc.GetByID(id)
			if err != nil {
				if errors.Cause(err) == group.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding group by ID")
			}
			ctx.Set("group", grp)

			ctxUsr, err := getContextUser(ctx, userSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			mbr, err := svc.GetMembership(ctxUsr.ID, grp.ID)
			if err == nil {
				ctx.Set("membership", mbr)
			} else if errors.Cause(err) != group.ErrMembershipNotFound {
				return errors.Wrap(err, "finding membership")
			}
			return next(ctx)
		}
	}
}

func getContextGroup(ctx echo.Context) (group.Group, error) {
	grp, ok := ctx.Get("group").(group.Group)
	if !ok {
		return group.Group{}, errors.Wrap(errGrpNotFoundInCtx, "retrieving group from context")
	}
	return grp, nil
}

func getContextMembership(ctx echo.Context) (group.Membership, bool) {
	mbr, ok := ctx.Get("membership").(group.Membership)
	return mbr, ok
}

// requireMember rejects callers without a membership; site admins pass.
func requireMember(ctx echo.Context, userSvc user.ServiceInterface) error {
	if _, ok := getContextMembership(ctx); ok {
		return nil
	}
	ctxUsr, err := getContextUser(ctx, userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsAdmin() {
		return nil
	}
	return errHttpForbidden
}

func (api *groupApi) resolveMaterial(ctx echo.Context) (group.Material, user.User, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return group.Material{}, user.User{}, errHttpNotFound
	}
	mat, err := api.svc.GetMaterialByID(id)
	if err != nil {
		return group.Material{}, user.User{}, trapGroupErr(err, "finding material by ID")
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return group.Material{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	return mat, ctxUsr, nil
}

func (api *groupApi) canManageMaterial(mat group.Material, ctxUsr user.User) error {
	if mat.UploadedBy == ctxUsr.ID || ctxUsr.IsAdmin() {
		return nil
	}
	mbr, err := api.svc.GetMembership(ctxUsr.ID, mat.GroupID)
	if err == nil && (mbr.IsAdmin() || mbr.IsModerator()) {
		return nil
	}
	if err != nil && errors.Cause(err) != group.ErrMembershipNotFound {
		return errors.Wrap(err, "finding membership")
	}
	return errHttpForbidden
}

func (api *groupApi) resolveComment(ctx echo.Context, grp group.Group) (group.Comment, error) {
	cid, err := strconv.Atoi(ctx.Param("cid"))
	if err != nil {
		return group.Comment{}, errHttpNotFound
	}
	cmt, err := api.svc.GetCommentByID(cid)
	if err != nil {
		return group.Comment{}, trapGroupErr(err, "finding comment by ID")
	}
	if cmt.GroupID != grp.ID {
		return group.Comment{}, errHttpNotFound
	}
	return cmt, nil
}

// trapGroupErr maps service sentinels to their HTTP counterparts.
func trapGroupErr(err error, msg string) error {
	switch errors.Cause(err) {
	case group.ErrNotFound, group.ErrSubjectNotFound, group.ErrMembershipNotFound,
		group.ErrMaterialNotFound, group.ErrCommentNotFound:
		return errHttpNotFound
	case group.ErrGroupFull, group.ErrAlreadyMember, group.ErrLastAdmin:
		return core.NewValidationError(errors.Cause(err))
	}
	return errors.Wrap(err, msg)
}

type MemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=member moderator admin"`
}

func (mr *MemberRoleRequest) Validate(validate *validator.Validate) error {
	mr.Role = core.CleanString(mr.Role, true /* lower */)
	return validate.Struct(mr)
}
